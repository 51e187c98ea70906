package store

import "net/http"

// Handler implements http.Handler through a pointer receiver.
type Handler struct{}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {}

// Wrapped inherits ServeHTTP from the embedded *Handler.
type Wrapped struct {
	*Handler
}

// Override embeds Handler and replaces ServeHTTP.
type Override struct {
	Handler
}

func (o Override) ServeHTTP(w http.ResponseWriter, r *http.Request) {}
