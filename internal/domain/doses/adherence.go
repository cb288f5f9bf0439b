package doses

// Adherence es la foto del día para un medicamento: cuántas tomas lleva,
// cuántas lo completan y si ya está completo. Es una vista derivada del
// ledger; se recalcula en cada consulta y nunca se persiste.
type Adherence struct {
	Taken     int
	Target    int
	Completed bool
}

// Evaluate deriva la adherencia. Completed es taken >= target, sin tope:
// registrar de más no la revierte.
func Evaluate(target, taken int) Adherence {
	if target < 1 {
		target = 1
	}
	return Adherence{
		Taken:     taken,
		Target:    target,
		Completed: taken >= target,
	}
}
