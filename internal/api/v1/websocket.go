package v1

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/stacklok/gitrepo-server/internal/notify"
)

// WebsocketHandler handles GET /v1/ws. The connection receives the clone
// notifications of the caller's owner namespace until it is closed.
//
// @Summary		Notification channel
// @Description	Websocket carrying clone completion events. Browsers may pass the token as ?token=.
// @Tags			notifications
// @Success		101
// @Failure		401	{object}	common.ErrorResponse
// @Router			/v1/ws [get]
func WebsocketHandler(hub *notify.Hub, writeTimeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}

		// The server read and write timeouts would otherwise close the
		// hijacked connection
		rc := http.NewResponseController(w)
		_ = rc.SetReadDeadline(time.Time{})
		_ = rc.SetWriteDeadline(time.Time{})

		if err := notify.Serve(w, r, hub, id.OwnerID, writeTimeout); err != nil {
			slog.Warn("Websocket session ended with error", "owner", id.OwnerID, "error", err)
		}
	}
}
