package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorBold    = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

// Wire shapes of the server responses the CLI prints.

type sessionView struct {
	ID              string       `json:"id"`
	Location        string       `json:"location"`
	CurrentThreadID string       `json:"current_thread_id"`
	Greeting        string       `json:"greeting"`
	Insights        insightsView `json:"insights"`
}

type insightsView struct {
	Persona      string `json:"persona"`
	TopInterests []struct {
		Persona string `json:"persona"`
		Score   int    `json:"score"`
	} `json:"top_interests"`
	PreferredTime string `json:"preferred_time"`
	RecentChoices []struct {
		Type   string `json:"type"`
		Detail string `json:"detail"`
	} `json:"recent_choices"`
	Chosen int `json:"chosen"`
	Total  int `json:"total"`
}

type replyView struct {
	ThreadID string `json:"thread_id"`
	Title    string `json:"title"`
	Persona  string `json:"persona"`
	Message  string `json:"message"`
}

type placeView struct {
	Name           string  `json:"name"`
	Rating         float64 `json:"rating"`
	PriceLevel     int     `json:"price_level"`
	Vicinity       string  `json:"vicinity"`
	OpenNow        *bool   `json:"open_now"`
	MapsLink       string  `json:"maps_link"`
	DirectionsLink string  `json:"directions_link"`
}

type adView struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	CTA         string `json:"cta"`
}

type quickView struct {
	Thread struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"thread"`
	Message      string      `json:"message"`
	Places       []placeView `json:"places"`
	Ad           *adView     `json:"ad"`
	StaticMapURL string      `json:"static_map_url"`
}

type threadSummary struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	DisplayTitle string    `json:"display_title"`
	Status       string    `json:"status"`
	Messages     int       `json:"messages"`
	Cards        int       `json:"cards"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type threadDetail struct {
	threadSummary
	Timeline []struct {
		Message *struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		Card *struct {
			Type string         `json:"type"`
			Data map[string]any `json:"data"`
		} `json:"card"`
	} `json:"timeline"`
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printReply(w io.Writer, r replyView) {
	fmt.Fprintf(w, "%s %s\n\n%s\n",
		colorize(colorBold, r.Title),
		colorize(colorMagenta, "["+r.Persona+"]"),
		r.Message,
	)
}

func printPlaces(w io.Writer, found []placeView) {
	for i, p := range found {
		line := fmt.Sprintf("%d. %s", i+1, colorize(colorBold, p.Name))
		if p.Rating > 0 {
			line += fmt.Sprintf("  ★ %.1f", p.Rating)
		}
		if p.PriceLevel > 0 {
			line += "  " + strings.Repeat("$", p.PriceLevel)
		}
		if p.OpenNow != nil {
			if *p.OpenNow {
				line += "  " + colorize(colorGreen, "open now")
			} else {
				line += "  " + colorize(colorRed, "closed")
			}
		}
		fmt.Fprintln(w, line)
		if p.Vicinity != "" {
			fmt.Fprintf(w, "   %s\n", p.Vicinity)
		}
		if p.MapsLink != "" {
			fmt.Fprintf(w, "   %s\n", p.MapsLink)
		}
	}
}

func printMap(w io.Writer, url string) {
	if url == "" {
		return
	}
	fmt.Fprintf(w, "\n%s %s\n", colorize(colorBold, "Map:"), url)
}

func printAd(w io.Writer, ad *adView) {
	if ad == nil {
		return
	}
	fmt.Fprintf(w, "\n%s %s\n   %s\n   %s: %s\n",
		colorize(colorYellow, "Sponsored"),
		colorize(colorBold, ad.Title),
		ad.Description,
		ad.CTA,
		ad.URL,
	)
}

func printInsights(w io.Writer, ins insightsView) {
	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Persona:"), ins.Persona)
	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Preferred time:"), ins.PreferredTime)
	if len(ins.TopInterests) > 0 {
		parts := make([]string, len(ins.TopInterests))
		for i, in := range ins.TopInterests {
			parts[i] = fmt.Sprintf("%s (%d)", in.Persona, in.Score)
		}
		fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Top interests:"), strings.Join(parts, ", "))
	}
	fmt.Fprintf(w, "%s %d/%d accepted\n", colorize(colorBold, "Choices:"), ins.Chosen, ins.Total)
	for _, c := range ins.RecentChoices {
		fmt.Fprintf(w, "  %s %s  %s\n", colorize(colorGreen, "✓"), c.Type, c.Detail)
	}
}
