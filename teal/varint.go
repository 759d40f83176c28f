package teal

// EncodeUvarint returns an expression producing the unsigned LEB128 encoding
// of n: seven bits per byte, low group first, high bit set on all but the
// last byte.
func EncodeUvarint(n Expr) Expr {
	rest := NewScratchVar(TypeUint64)
	buf := NewScratchVar(TypeBytes)
	lowByte := func(v Expr) Expr {
		return Extract(Itob(v), Int(7), Int(1))
	}
	return Seq(
		rest.Store(n),
		buf.Store(Bytes(nil)),
		While(Ge(rest.Load(), Int(128)), Seq(
			buf.Store(Concat(buf.Load(), lowByte(BitwiseOr(BitwiseAnd(rest.Load(), Int(127)), Int(128))))),
			rest.Store(ShiftRight(rest.Load(), Int(7))),
		)),
		Concat(buf.Load(), lowByte(rest.Load())),
	)
}
