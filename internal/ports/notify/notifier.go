package notify

import "context"

// Notification es la petición "mostrar recordatorio" hacia el colaborador
// de notificaciones. Entrega, permisos y render son problema suyo.
type Notification struct {
	UserID string

	Title  string
	Body   string
	Urgent bool

	// DedupKey identifica (medicamento, hora-o-comida, día) para que el
	// colaborador pueda colapsar duplicados.
	DedupKey string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
