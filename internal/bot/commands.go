package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

const (
	CmdEstado    = "estado"
	CmdJugadores = "jugadores"
	CmdStart     = "start"
	CmdStop      = "stop"
)

var Commands = []*discordgo.ApplicationCommand{
	{Name: CmdEstado, Description: "Muestra el estado del servidor"},
	{Name: CmdJugadores, Description: "Muestra jugadores conectados"},
	{Name: CmdStart, Description: "Inicia el servidor Aternos"},
	{Name: CmdStop, Description: "Apaga el servidor Aternos"},
}

// Register replaces the application's commands with Commands, for one
// guild when guildID is set and globally otherwise.
func Register(s *discordgo.Session, appID, guildID string) ([]*discordgo.ApplicationCommand, error) {
	cmds, err := s.ApplicationCommandBulkOverwrite(appID, guildID, Commands)
	if err != nil {
		return nil, fmt.Errorf("register commands: %w", err)
	}
	return cmds, nil
}
