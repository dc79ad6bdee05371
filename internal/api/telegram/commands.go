package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tube-counter/internal/domain/entity"
)

var errUnknownCommand = errors.New(strings.TrimPrefix(msgUnknownCommand, "❓ "))

// parseCommand переводит команду чата в событие сессии.
// seq — ID сообщения: повторная доставка того же /tap не применяется дважды.
func parseCommand(command, args string, seq int64, current entity.DisplaySettings) (entity.Event, error) {
	fields := strings.Fields(args)

	switch command {
	case "tap":
		if len(fields) != 2 {
			return entity.Event{}, errors.New("usage: /tap x y")
		}
		x, errX := strconv.ParseFloat(fields[0], 64)
		y, errY := strconv.ParseFloat(fields[1], 64)
		if errX != nil || errY != nil {
			return entity.Event{}, fmt.Errorf("%w: %q", entity.ErrInvalidClick, args)
		}
		return entity.Event{Kind: entity.EventClick, Click: &entity.Click{X: x, Y: y, Seq: seq}}, nil

	case "undo":
		return entity.Event{Kind: entity.EventUndo}, nil

	case "clear":
		return entity.Event{Kind: entity.EventClear}, nil

	case "rescan":
		return entity.Event{Kind: entity.EventRescan}, nil

	case "count", "show":
		return entity.Event{Kind: entity.EventRender}, nil

	case "sensitivity", "size":
		if len(fields) != 1 {
			return entity.Event{}, fmt.Errorf("usage: /%s N", command)
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			return entity.Event{}, fmt.Errorf("usage: /%s N", command)
		}
		settings := current
		if command == "size" {
			settings.MarkerSize = n
		} else {
			settings.Sensitivity = n
		}
		return settingsEvent(settings), nil

	case "color":
		if len(fields) != 1 {
			return entity.Event{}, errors.New("usage: /color #rrggbb")
		}
		settings := current
		settings.Color = "#" + strings.TrimPrefix(strings.ToLower(fields[0]), "#")
		return settingsEvent(settings), nil

	case "banded":
		settings := current
		settings.Banded = !settings.Banded
		return settingsEvent(settings), nil

	default:
		return entity.Event{}, errUnknownCommand
	}
}

func settingsEvent(s entity.DisplaySettings) entity.Event {
	return entity.Event{Kind: entity.EventSettings, Settings: &s}
}
