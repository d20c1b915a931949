package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/aternos"
	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/status"
)

var ackText = map[string]string{
	CmdEstado:    "Verificando estado... ⏳",
	CmdJugadores: "Consultando jugadores... ⏳",
	CmdStart:     "Iniciando servidor... ⏳",
	CmdStop:      "Deteniendo servidor... ⏳",
}

const (
	msgStartRejected = "No se pudo iniciar el servidor ❌ (no aparece el botón de inicio; puede que ya esté encendido)"
	msgStopAccepted  = "Servidor apagado correctamente 🛑"
	msgStopRejected  = "No se pudo apagar el servidor ❌ (no aparece el botón de apagado; puede que ya esté apagado)"

	msgBlocked = "❌ Aternos mostró una verificación anti-bot. Inténtalo de nuevo más tarde."
	msgAuth    = "❌ No se pudo iniciar sesión en Aternos. Revisa ATERNOS_EMAIL y ATERNOS_PASSWORD."
	msgExpired = "❌ La sesión de Aternos ha caducado. Actualiza ATERNOS_SESSION."
)

func formatStatus(st aternos.State) string {
	power := "APAGADO 🛑"
	if st.Online {
		power = "ENCENDIDO ✅"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Servidor: %s\nEstado: %s", power, st.StatusText)
	if st.Online {
		fmt.Fprintf(&b, "\nIP: %s\nJugadores: %s", st.Address, st.Players)
	}
	return b.String()
}

func formatPlayers(value string, age time.Duration, stale bool) string {
	msg := "Jugadores conectados: " + value
	if stale {
		msg += fmt.Sprintf(" (dato de hace %s, puede estar desactualizado)", age.Round(time.Minute))
	}
	return msg
}

func formatStartAccepted(address string) string {
	switch address {
	case "", aternos.Unknown, status.NotAvailable:
		return "Servidor iniciado correctamente ✅"
	}
	return "Servidor iniciado correctamente. IP: " + address
}

func formatError(command string, err error, limit int) string {
	switch aternos.Classify(err) {
	case aternos.KindBlocked:
		return msgBlocked
	case aternos.KindAuth:
		return msgAuth
	case aternos.KindExpired:
		return msgExpired
	}
	return fmt.Sprintf("❌ Error al ejecutar /%s: %s", command, truncate(err.Error(), limit))
}

// truncate cuts s to at most limit runes, marking the cut with an ellipsis.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit == 1 {
		return "…"
	}
	return string(r[:limit-1]) + "…"
}
