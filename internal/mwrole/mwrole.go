// Package mwrole augments 200 JSON responses with the caller's role
package mwrole

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/UnendingLoop/ImageVariations/internal/mwauth"
)

// RoleChecker - контракт проверки членства в роли
type RoleChecker interface {
	HasRole(ctx context.Context, userID int64, role string) (bool, error)
}

// New оборачивает next: если ответ - ровно 200 и JSON-объект, а вызывающий
// аутентифицирован, в тело дописывается поле role ("admin"/"user").
// Любой другой ответ уходит клиенту нетронутым. Пути из skip не
// буферизуются вообще - websocket-апгрейду нужен живой ResponseWriter.
func New(next http.Handler, roles RoleChecker, skip ...string) http.Handler {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := mwauth.UserFromContext(r.Context())
		if !ok || skipped[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		rec := &bufferedWriter{header: make(http.Header), status: http.StatusOK}
		next.ServeHTTP(rec, r)

		body := rec.buf.Bytes()
		if rec.status == http.StatusOK {
			var decoded map[string]any
			if err := json.Unmarshal(body, &decoded); err == nil {
				role := "user"
				isAdmin, err := roles.HasRole(r.Context(), user.ID, "admin")
				if err != nil {
					log.Printf("Failed to check admin role for user %d: %v", user.ID, err)
				}
				if isAdmin {
					role = "admin"
				}
				decoded["role"] = role

				if reencoded, err := json.Marshal(decoded); err == nil {
					body = reencoded
				}
			}
		}

		copyHeader(w.Header(), rec.header)
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(rec.status)
		if _, err := w.Write(body); err != nil {
			log.Println("Failed to write augmented response:", err)
		}
	})
}

// bufferedWriter копит ответ хендлера, чтобы его можно было переписать
type bufferedWriter struct {
	header http.Header
	buf    bytes.Buffer
	status int
}

func (b *bufferedWriter) Header() http.Header {
	return b.header
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	return b.buf.Write(p)
}

func (b *bufferedWriter) WriteHeader(status int) {
	b.status = status
}

func copyHeader(dst, src http.Header) {
	for k, values := range src {
		if k == "Content-Length" {
			continue
		}
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}
