package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/concierge/internal/config"
)

// --- explore ---

var exploreCmd = &cobra.Command{
	Use:   "explore [location]",
	Short: "Start a new session, optionally in a location",
	Long: `Start a new concierge session. Later commands talk in this session.

Examples:
  concierge explore
  concierge explore "Kyoto, Japan"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		s, err := client.startSession(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}

		printSuccess("Exploring %s (session %s)", s.Location, shortID(s.ID))
		if s.Greeting != "" {
			fmt.Println(s.Greeting)
		}
		return nil
	},
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Ask the concierge something",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.TrimSpace(strings.Join(args, " "))
		if message == "" {
			return fmt.Errorf("message is required")
		}
		threadID, _ := cmd.Flags().GetString("thread")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]string{"message": message}
		if threadID != "" {
			req["thread_id"] = threadID
		}
		var reply replyView
		if err := client.sessionDo(cmd.Context(), http.MethodPost, "/chat", req, &reply); err != nil {
			return err
		}

		printReply(os.Stdout, reply)
		return nil
	},
}

func init() {
	chatCmd.Flags().String("thread", "", "continue this thread instead of the current one")
}

// --- quick ---

var quickCmd = &cobra.Command{
	Use:       "quick <food|activities|itinerary>",
	Short:     "Run a quick action in the current location",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"food", "activities", "itinerary"},
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var res quickView
		path := "/quick-actions/" + url.PathEscape(args[0])
		if err := client.sessionDo(cmd.Context(), http.MethodPost, path, nil, &res); err != nil {
			return err
		}

		fmt.Printf("%s\n\n%s\n", colorize(colorBold, res.Thread.Title), res.Message)
		if len(res.Places) > 0 {
			fmt.Println()
			printPlaces(os.Stdout, res.Places)
		}
		printMap(os.Stdout, res.StaticMapURL)
		printAd(os.Stdout, res.Ad)
		return nil
	},
}

// --- choose ---

var chooseCmd = &cobra.Command{
	Use:   "choose <type> [detail]",
	Short: "Record whether you took a suggestion",
	Long: `Record an accepted (default) or skipped suggestion so future
recommendations lean toward what you actually pick.

Examples:
  concierge choose restaurant "Cafe by the Ruins"
  concierge choose nightlife --skip`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		skip, _ := cmd.Flags().GetBool("skip")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"type":     args[0],
			"accepted": !skip,
			"detail":   strings.Join(args[1:], " "),
		}
		var ins insightsView
		if err := client.sessionDo(cmd.Context(), http.MethodPost, "/choices", req, &ins); err != nil {
			return err
		}

		verb := "accepted"
		if skip {
			verb = "skipped"
		}
		printSuccess("Recorded %s %s (%d/%d preferences captured)", verb, args[0], ins.Chosen, ins.Total)
		return nil
	},
}

func init() {
	chooseCmd.Flags().Bool("skip", false, "record the suggestion as skipped")
}

// --- persona ---

var personaCmd = &cobra.Command{
	Use:   "persona",
	Short: "Show what the concierge has learned about you",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var ins insightsView
		if err := client.sessionDo(cmd.Context(), http.MethodGet, "/insights", nil, &ins); err != nil {
			return err
		}
		printInsights(os.Stdout, ins)
		return nil
	},
}

var personaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the persona catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/personas")
		if err != nil {
			return err
		}
		var profiles []struct {
			Tag  string `json:"tag"`
			Tone string `json:"tone"`
		}
		if err := decodeJSON(resp, &profiles); err != nil {
			return err
		}
		for _, p := range profiles {
			fmt.Printf("%-12s %s\n", colorize(colorCyan, p.Tag), p.Tone)
		}
		return nil
	},
}

var personaResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget learned behaviour in the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := client.sessionDo(cmd.Context(), http.MethodDelete, "/behavior", nil, nil); err != nil {
			return err
		}
		printSuccess("Behaviour cleared")
		return nil
	},
}

var personaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show raw behaviour scores as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var raw any
		if err := client.sessionDo(cmd.Context(), http.MethodGet, "/persona", nil, &raw); err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(raw)
	},
}

func init() {
	personaCmd.AddCommand(personaListCmd, personaShowCmd, personaResetCmd)
}

// --- threads ---

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "List and manage conversation threads",
}

var threadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List threads in the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := url.Values{}
		q.Set("status", status)
		q.Set("limit", strconv.Itoa(limit))
		var list []threadSummary
		if err := client.sessionDo(cmd.Context(), http.MethodGet, "/threads?"+q.Encode(), nil, &list); err != nil {
			return err
		}

		if len(list) == 0 {
			fmt.Println("No threads found.")
			return nil
		}
		for _, t := range list {
			fmt.Printf("%s  %-10s %-24s %d messages, %d cards\n",
				colorize(colorCyan, shortID(t.ID)),
				t.Status,
				t.DisplayTitle,
				t.Messages,
				t.Cards,
			)
		}
		return nil
	},
}

var threadsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a thread's timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var t threadDetail
		if err := client.sessionDo(cmd.Context(), http.MethodGet, "/threads/"+url.PathEscape(args[0]), nil, &t); err != nil {
			return err
		}

		fmt.Printf("%s (%s, %s)\n", colorize(colorBold, t.DisplayTitle), t.Type, t.Status)
		for _, e := range t.Timeline {
			switch {
			case e.Message != nil:
				fmt.Printf("\n%s %s\n", colorize(colorBold, e.Message.Role+":"), e.Message.Content)
			case e.Card != nil:
				name, _ := e.Card.Data["name"].(string)
				if name == "" {
					name, _ = e.Card.Data["title"].(string)
				}
				fmt.Printf("  [%s] %s\n", e.Card.Type, name)
			}
		}
		return nil
	},
}

func threadStatusCmd(use, short, status string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			var t threadSummary
			body := map[string]string{"status": status}
			if err := client.sessionDo(cmd.Context(), http.MethodPatch, "/threads/"+url.PathEscape(args[0]), body, &t); err != nil {
				return err
			}
			printSuccess("Thread %q is now %s", t.DisplayTitle, t.Status)
			return nil
		},
	}
}

var threadsSelectCmd = &cobra.Command{
	Use:   "select <id>",
	Short: "Make a thread the current one for chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var t threadSummary
		if err := client.sessionDo(cmd.Context(), http.MethodPost, "/threads/"+url.PathEscape(args[0])+"/select", nil, &t); err != nil {
			return err
		}
		printSuccess("Chatting in %q", t.DisplayTitle)
		return nil
	},
}

func init() {
	threadsListCmd.Flags().String("status", "active", "active, completed, or all")
	threadsListCmd.Flags().Int("limit", 5, "maximum number of threads to list")
	threadsCmd.AddCommand(
		threadsListCmd,
		threadsShowCmd,
		threadsSelectCmd,
		threadStatusCmd("complete", "Mark a thread completed", "completed"),
		threadStatusCmd("archive", "Archive a thread", "archived"),
	)
}

// --- places ---

var placesCmd = &cobra.Command{
	Use:   "places <keyword>",
	Short: "Search for places near a location",
	Long: `Search for places near a location.

Examples:
  concierge places ramen --location "Kyoto, Japan"
  concierge places museum --location Lisbon --radius 3000`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		location, _ := cmd.Flags().GetString("location")
		radius, _ := cmd.Flags().GetInt("radius")
		if location == "" {
			return fmt.Errorf("--location is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := url.Values{}
		q.Set("location", location)
		q.Set("keyword", strings.Join(args, " "))
		if radius > 0 {
			q.Set("radius", strconv.Itoa(radius))
		}
		resp, err := client.get(cmd.Context(), "/places?"+q.Encode())
		if err != nil {
			return err
		}
		var result struct {
			Places       []placeView `json:"places"`
			StaticMapURL string      `json:"static_map_url"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Places) == 0 {
			fmt.Println("No places found.")
			return nil
		}
		printPlaces(os.Stdout, result.Places)
		printMap(os.Stdout, result.StaticMapURL)
		return nil
	},
}

func init() {
	placesCmd.Flags().String("location", "", "where to search")
	placesCmd.Flags().Int("radius", 0, "search radius in meters (server default when 0)")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return config.ValidKeys(), cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
}
