package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/caarlos0/env/v11"
)

const (
	boxTopLeft     = "╒"
	boxBottomLeft  = "└"
	boxTopRight    = "╕"
	boxBottomRight = "┘"
	boxSide        = "│"
	boxTop         = "═"
	boxBottom      = "─"
	dividerLeft    = "┠"
	dividerMiddle  = "─"
	dividerRight   = "┨"
	ellipsis       = "…"
)

// Alignment of text inside a Banner.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

const (
	// DefaultTerminalWidth is used when the terminal size cannot be read.
	DefaultTerminalWidth = 80

	bannerPadding = 2
)

type bannerEnv struct {
	NoBanner bool `env:"FSM_NO_BANNER" envDefault:"false"`
}

var suppressBanner = sync.OnceValue(func() bool { //nolint:gochecknoglobals
	cfg, err := env.ParseAs[bannerEnv]()

	return err == nil && cfg.NoBanner
})

func terminalWidth() int {
	_, w, err := TerminalDimensions()
	if err != nil || w == 0 {
		return DefaultTerminalWidth
	}

	return int(w) //nolint:gosec // Terminal width is bounded by screen size
}

// DividerAutoWidth returns a divider as wide as the terminal.
func DividerAutoWidth() string {
	return Divider(terminalWidth())
}

// BannerAutoWidth returns a banner as wide as the terminal.
func BannerAutoWidth(s string, a Alignment) string {
	if suppressBanner() {
		return s + "\n"
	}

	return Banner(s, terminalWidth(), a)
}

// Divider returns a horizontal rule width cells wide.
func Divider(width int) string {
	if width < bannerPadding {
		return "\n"
	}

	return dividerLeft + strings.Repeat(dividerMiddle, width-bannerPadding) + dividerRight + "\n"
}

// Banner draws a box width cells wide around the lines of s. It returns an
// empty string for an unusable width or alignment.
func Banner(s string, width int, alignment Alignment) string {
	if suppressBanner() {
		return s + "\n"
	}

	if width <= bannerPadding || alignment < AlignLeft || alignment > AlignRight {
		return ""
	}

	inner := width - bannerPadding
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")

	parts := make([]string, 0, len(lines)+2) //nolint:mnd
	parts = append(parts, boxTopLeft+strings.Repeat(boxTop, inner)+boxTopRight)

	for _, l := range lines {
		parts = append(parts, boxSide+pad(l, inner, alignment)+boxSide)
	}

	parts = append(parts, boxBottomLeft+strings.Repeat(boxBottom, inner)+boxBottomRight)

	return strings.Join(parts, "\n")
}

func countGraphic(s string) int {
	count := 0

	for _, r := range s {
		if unicode.IsGraphic(r) {
			count++
		}
	}

	return count
}

// truncateGraphic keeps the first n-1 graphic runes of s and appends an ellipsis.
func truncateGraphic(s string, n int) string {
	var (
		sb    strings.Builder
		count int
	)

	for _, r := range s {
		if unicode.IsGraphic(r) {
			count++
		}

		if count >= n {
			break
		}

		sb.WriteRune(r)
	}

	return sb.String() + ellipsis
}

func pad(text string, width int, alignment Alignment) string {
	if countGraphic(text) > width {
		text = truncateGraphic(text, width)
	}

	diff := width - countGraphic(text)

	switch alignment {
	case AlignCenter:
		left := diff / 2 //nolint:mnd

		return strings.Repeat(" ", left) + text + strings.Repeat(" ", diff-left)
	case AlignRight:
		return strings.Repeat(" ", diff) + text
	default:
		return text + strings.Repeat(" ", diff)
	}
}

func size() (string, error) {
	f, err := os.Open("/dev/tty")
	if err != nil {
		return "", err
	}

	defer f.Close() //nolint:errcheck

	// Outputs: "rows columns"
	cmd := exec.Command("stty", "size")
	cmd.Stdin = f
	out, err := cmd.Output()

	return string(out), err
}

func parse(input string) (uint, uint, error) {
	fields := strings.Fields(input)
	if len(fields) != 2 { //nolint:mnd
		return 0, 0, fmt.Errorf("%w: %q", strconv.ErrSyntax, input)
	}

	rows, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return 0, 0, err
	}

	cols, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, 0, err
	}

	return uint(rows), uint(cols), nil
}

// TerminalDimensions returns (rows, cols, err).
func TerminalDimensions() (uint, uint, error) {
	output, err := size()
	if err != nil {
		return 0, 0, err
	}

	return parse(output)
}
