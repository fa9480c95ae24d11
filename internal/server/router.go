package server

import "net/http"

// Router registers GET handlers on an [http.ServeMux] behind a middleware stack.
type Router struct {
	mux         *http.ServeMux
	middlewares []Middleware
}

func NewRouter() *Router {
	return &Router{mux: http.NewServeMux()}
}

// Use appends middleware. The first one added is the outermost.
func (r *Router) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Get registers handler for GET requests on path.
func (r *Router) Get(path string, handler http.Handler) {
	r.mux.Handle("GET "+path, r.wrap(handler))
}

// Mount registers handler for GET requests on each of its routes.
func (r *Router) Mount(handler Handler) {
	wrapped := r.wrap(handler)
	for _, route := range handler.Routes() {
		r.mux.Handle("GET "+route, wrapped)
	}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) wrap(handler http.Handler) http.Handler {
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}
	return handler
}
