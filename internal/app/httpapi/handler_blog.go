package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/EduShopX/edushop/internal/app/services/blog"
	"github.com/EduShopX/edushop/internal/middleware"
)

func (h *handler) registerBlogRoutes(api *mux.Router) {
	api.HandleFunc("/blog/articles/", h.listPublishedArticles).Methods(http.MethodGet)
	api.HandleFunc("/blog/comments/public/", h.listPublicComments).Methods(http.MethodGet)

	api.Handle("/user/articles/", authed(h.listMyArticles)).Methods(http.MethodGet)
	user := api.PathPrefix("/user/articles").Subrouter()
	user.Use(middleware.Require(middleware.IsAuthenticated))
	h.registerArticleDetail(user)

	api.Handle("/blog/comments/", authed(h.listMyComments)).Methods(http.MethodGet)
	comments := api.PathPrefix("/blog/comments").Subrouter()
	comments.Use(middleware.Require(middleware.IsAuthenticated))
	h.registerCommentDetail(comments)
}

// registerArticleDetail mounts article create and detail routes. Ownership
// checks live in the blog service.
func (h *handler) registerArticleDetail(sub *mux.Router) {
	sub.HandleFunc("/", h.createArticle).Methods(http.MethodPost)
	sub.HandleFunc("/{id:[0-9]+}/", h.getArticle).Methods(http.MethodGet)
	sub.HandleFunc("/{id:[0-9]+}/", h.updateArticle).Methods(http.MethodPut, http.MethodPatch)
	sub.HandleFunc("/{id:[0-9]+}/", h.deleteArticle).Methods(http.MethodDelete)
}

func (h *handler) registerCommentDetail(sub *mux.Router) {
	sub.HandleFunc("/", h.createComment).Methods(http.MethodPost)
	sub.HandleFunc("/{id:[0-9]+}/", h.getComment).Methods(http.MethodGet)
	sub.HandleFunc("/{id:[0-9]+}/", h.updateComment).Methods(http.MethodPut, http.MethodPatch)
	sub.HandleFunc("/{id:[0-9]+}/", h.deleteComment).Methods(http.MethodDelete)
}

func (h *handler) listPublishedArticles(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Blog.ListPublished(r.Context())
	writeList(h, w, r, items, err)
}

func (h *handler) listMyArticles(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Blog.ListUserArticles(r.Context(), principal(r).UserID)
	writeList(h, w, r, items, err)
}

func (h *handler) createArticle(w http.ResponseWriter, r *http.Request) {
	var in blog.ArticleInput
	if !h.decode(w, r, &in) {
		return
	}
	out, err := h.app.Blog.CreateArticle(r.Context(), principal(r), in)
	write(h, w, r, http.StatusCreated, out, err)
}

func (h *handler) getArticle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.app.Blog.GetArticle(r.Context(), principal(r), id)
	write(h, w, r, http.StatusOK, out, err)
}

func (h *handler) updateArticle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in blog.ArticleInput
	if !h.decode(w, r, &in) {
		return
	}
	out, err := h.app.Blog.UpdateArticle(r.Context(), principal(r), id, in)
	write(h, w, r, http.StatusOK, out, err)
}

func (h *handler) deleteArticle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.noContent(w, r, h.app.Blog.DeleteArticle(r.Context(), principal(r), id))
}

func (h *handler) listPublicComments(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Blog.ListPublicComments(r.Context())
	writeList(h, w, r, items, err)
}

func (h *handler) listMyComments(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Blog.ListUserComments(r.Context(), principal(r).UserID)
	writeList(h, w, r, items, err)
}

func (h *handler) createComment(w http.ResponseWriter, r *http.Request) {
	var in blog.CommentInput
	if !h.decode(w, r, &in) {
		return
	}
	out, err := h.app.Blog.CreateComment(r.Context(), principal(r), in)
	write(h, w, r, http.StatusCreated, out, err)
}

func (h *handler) getComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.app.Blog.GetComment(r.Context(), principal(r), id)
	write(h, w, r, http.StatusOK, out, err)
}

func (h *handler) updateComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in blog.CommentInput
	if !h.decode(w, r, &in) {
		return
	}
	out, err := h.app.Blog.UpdateComment(r.Context(), principal(r), id, in)
	write(h, w, r, http.StatusOK, out, err)
}

func (h *handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.noContent(w, r, h.app.Blog.DeleteComment(r.Context(), principal(r), id))
}
