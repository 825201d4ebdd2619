package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yeqown/go-qrcode/v2"
	"github.com/yeqown/go-qrcode/writer/standard"
)

// RoomQR serves a QR code pointing at the room's join link, for showing
// on the host's screen so phones can scan in.
//
// GET /api/rooms/{code}/qr.png
func (h *Handler) RoomQR(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if _, err := h.engine.View(code, ""); err != nil {
		h.writeError(w, err)
		return
	}

	joinURL := fmt.Sprintf("%s/rooms/%s", h.baseURL(r), code)
	png, err := generateQRCode(joinURL)
	if err != nil {
		h.log.Error().Err(err).Str("room", code).Msg("failed to generate qr code")
		http.Error(w, "QR generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=3600")
	w.Write(png)
}

// generateQRCode generates a QR code for the given URL and returns the
// encoded PNG
func generateQRCode(url string) ([]byte, error) {
	// Create QR code with medium error correction level
	qrc, err := qrcode.NewWith(url,
		qrcode.WithErrorCorrectionLevel(qrcode.ErrorCorrectionMedium),
		qrcode.WithEncodingMode(qrcode.EncModeByte),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}

	// The writer only renders to a file, so go through a temp path
	tmpFile := filepath.Join(os.TempDir(), fmt.Sprintf("qr_%d.png", time.Now().UnixNano()))
	defer os.Remove(tmpFile)

	wr, err := standard.New(tmpFile,
		standard.WithBuiltinImageEncoder(standard.PNG_FORMAT),
		standard.WithQRWidth(8), // 8 pixels per module
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create writer: %w", err)
	}

	if err := qrc.Save(wr); err != nil {
		return nil, fmt.Errorf("failed to save QR code: %w", err)
	}

	data, err := os.ReadFile(tmpFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read QR code file: %w", err)
	}
	return data, nil
}

// baseURL resolves the externally visible base URL for join links. The
// configured public URL wins; otherwise it is derived from the request.
func (h *Handler) baseURL(r *http.Request) string {
	if h.config.Server.PublicURL != "" {
		return h.config.Server.PublicURL
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	// X-Forwarded-Proto is set by reverse proxies terminating TLS
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}
