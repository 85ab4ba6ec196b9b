package httpserver

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// PreviewOptions configure the CMS live-preview redirect.
type PreviewOptions struct {
	BaseURL string // site origin, default http://localhost:3000
	Token   string // when set, the preview request must carry it as ?token=
}

// preview is called by the CMS with an entry and its content type and
// redirects the editor to the site page that renders that entry.
func (h *Handlers) preview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	uid, ct := q.Get("entryUid"), q.Get("content_type_uid")
	if uid == "" || ct == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Missing entryUid or content_type_uid"})
		return
	}
	if h.Preview.Token != "" && subtle.ConstantTimeCompare([]byte(q.Get("token")), []byte(h.Preview.Token)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid preview token"})
		return
	}

	base := strings.TrimRight(h.Preview.BaseURL, "/")
	if base == "" {
		base = "http://localhost:3000"
	}
	path := h.Catalog.PreviewPath(r.Context(), ct, uid)
	log.Debug().Str("content_type", ct).Str("entry_uid", uid).Str("path", path).Msg("preview redirect")
	http.Redirect(w, r, base+path, http.StatusTemporaryRedirect)
}
