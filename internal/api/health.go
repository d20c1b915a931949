package api

import "net/http"

const LivenessBody = "Bot activo y escuchando correctamente."

// Liveness keeps external supervisors happy. It has no dependencies.
func Liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(LivenessBody))
}
