package convert

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	apperrors "github.com/tendant/simple-ums/pkg/errors"
)

// Response is the envelope every endpoint answers with.
type Response[T any] struct {
	Items      []T         `json:"items"`
	CrudInfo   *CrudInfo   `json:"crud_info,omitempty"`
	PageInfo   *PageInfo   `json:"page_info,omitempty"`
	StatusInfo *StatusInfo `json:"status_info,omitempty"`
}

type CrudInfo struct {
	DeletedRowsCount int `json:"deleted_rows_count"`
}

type PageInfo struct {
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
	PageNumber int `json:"page_number"`
	PerPage    int `json:"per_page"`
}

type StatusInfo struct {
	ErrMsg string `json:"err_msg,omitempty"`
}

// WriteSingle answers 200 with one item, or 404 with no items when item is nil.
func WriteSingle[T any](w http.ResponseWriter, r *http.Request, item *T) {
	WriteSingleStatus(w, r, http.StatusOK, item)
}

func WriteSingleStatus[T any](w http.ResponseWriter, r *http.Request, status int, item *T) {
	if item == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, Response[T]{Items: []T{}})
		return
	}
	render.Status(r, status)
	render.JSON(w, r, Response[T]{Items: []T{*item}})
}

// WriteList answers 200 with items. A nil list is written as [].
func WriteList[T any](w http.ResponseWriter, r *http.Request, items []T, page *PageInfo) {
	if items == nil {
		items = []T{}
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, Response[T]{Items: items, PageInfo: page})
}

// WriteDeleted answers 200 with deleted_rows_count set to 1.
func WriteDeleted(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, Response[any]{Items: []any{}, CrudInfo: &CrudInfo{DeletedRowsCount: 1}})
}

// WriteError answers with the status mapped from err and its message in
// status_info.err_msg.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "uri", r.RequestURI, "err", err)
	} else {
		slog.Debug("Request rejected", "method", r.Method, "uri", r.RequestURI, "status", status, "err", err)
	}

	render.Status(r, status)
	render.JSON(w, r, Response[any]{
		Items:      []any{},
		StatusInfo: &StatusInfo{ErrMsg: apperrors.Message(err)},
	})
}
