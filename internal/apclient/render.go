package apclient

import (
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/muesli/termenv"
)

// ErrUnrenderable is returned when an id node does not carry a number.
var ErrUnrenderable = errors.New("text node is not renderable")

// Names resolves ids while rendering.
type Names interface {
	PlayerNumber() int
	PlayerAlias(slot int) string
	PlayerGame(slot int) string
	ItemName(id int64, game string) string
	LocationName(id int64, game string) string
}

var ansiColors = map[string]termenv.ANSIColor{
	"black":   termenv.ANSIBlack,
	"red":     termenv.ANSIRed,
	"green":   termenv.ANSIGreen,
	"yellow":  termenv.ANSIYellow,
	"blue":    termenv.ANSIBlue,
	"magenta": termenv.ANSIMagenta,
	"cyan":    termenv.ANSICyan,
	"white":   termenv.ANSIWhite,
}

var rgbColors = map[string]termenv.RGBColor{
	"plum":      "#AF99EF",
	"slateblue": "#6D8BE8",
	"salmon":    "#FA8072",
}

// Render turns a PrintJSON node list into a string in the requested format.
func Render(nodes []TextNode, format RenderFormat, names Names) (string, error) {
	if format < RenderText || format > RenderANSI {
		return "", fmt.Errorf("unknown render format %d", format)
	}
	var out strings.Builder
	for _, node := range nodes {
		text, color, err := resolveNode(node, names)
		if err != nil {
			return "", err
		}
		switch format {
		case RenderHTML:
			out.WriteString(htmlSpan(text, color))
		case RenderANSI:
			out.WriteString(ansiSpan(strings.ReplaceAll(text, "\x1b", ""), color))
		default:
			out.WriteString(text)
		}
	}
	return out.String(), nil
}

func resolveNode(node TextNode, names Names) (text, color string, err error) {
	color = node.Color
	switch node.Type {
	case "player_id":
		id, convErr := strconv.Atoi(node.Text)
		if convErr != nil {
			return "", "", fmt.Errorf("%w: player id %q", ErrUnrenderable, node.Text)
		}
		if color == "" {
			color = "yellow"
			if id == names.PlayerNumber() {
				color = "magenta"
			}
		}
		return names.PlayerAlias(id), color, nil
	case "player_name":
		if color == "" {
			color = "yellow"
		}
		return node.Text, color, nil
	case "item_id":
		id, convErr := strconv.ParseInt(node.Text, 10, 64)
		if convErr != nil {
			return "", "", fmt.Errorf("%w: item id %q", ErrUnrenderable, node.Text)
		}
		if color == "" {
			color = itemColor(node.Flags)
		}
		return names.ItemName(id, names.PlayerGame(node.Player)), color, nil
	case "item_name":
		if color == "" {
			color = itemColor(node.Flags)
		}
		return node.Text, color, nil
	case "location_id":
		id, convErr := strconv.ParseInt(node.Text, 10, 64)
		if convErr != nil {
			return "", "", fmt.Errorf("%w: location id %q", ErrUnrenderable, node.Text)
		}
		if color == "" {
			color = "green"
		}
		return names.LocationName(id, names.PlayerGame(node.Player)), color, nil
	case "location_name":
		if color == "" {
			color = "green"
		}
		return node.Text, color, nil
	case "entrance_name":
		if color == "" {
			color = "blue"
		}
		return node.Text, color, nil
	default:
		return node.Text, color, nil
	}
}

func itemColor(flags int) string {
	switch {
	case flags&FlagAdvancement != 0:
		return "plum"
	case flags&FlagNeverExclude != 0:
		return "slateblue"
	case flags&FlagTrap != 0:
		return "salmon"
	default:
		return "cyan"
	}
}

func htmlSpan(text, color string) string {
	escaped := html.EscapeString(text)
	var style string
	switch {
	case color == "":
		return escaped
	case color == "bold":
		style = "font-weight:bold"
	case color == "underline":
		style = "text-decoration:underline"
	case strings.HasSuffix(color, "_bg"):
		style = "background-color:" + strings.TrimSuffix(color, "_bg")
	default:
		style = "color:" + color
	}
	return `<span style="` + style + `">` + escaped + `</span>`
}

func ansiSpan(text, color string) string {
	if color == "" {
		return text
	}
	style := termenv.TrueColor.String(text)
	switch {
	case color == "bold":
		style = style.Bold()
	case color == "underline":
		style = style.Underline()
	case strings.HasSuffix(color, "_bg"):
		c, ok := ansiColors[strings.TrimSuffix(color, "_bg")]
		if !ok {
			return text
		}
		style = style.Background(c)
	default:
		if c, ok := ansiColors[color]; ok {
			style = style.Foreground(c)
		} else if c, ok := rgbColors[color]; ok {
			style = style.Foreground(c)
		} else {
			return text
		}
	}
	return style.String()
}
