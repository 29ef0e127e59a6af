package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

// Simplified DTOs for the script
type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatEvent struct {
	Title    string `json:"title"`
	Date     string `json:"date"`
	Location string `json:"location"`
	Cost     string `json:"cost"`
	URL      string `json:"url"`
}

type chatResponse struct {
	Text            string      `json:"text"`
	Events          []chatEvent `json:"events"`
	MissionComplete bool        `json:"mission_complete"`
}

var script = []string{
	"Hi! I want to meet new people",
	"Something free this weekend in the old town",
	"show me more",
	"The walking tour sounds perfect, thanks!",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8000/api/chat/v1", "chat API base URL")
	flag.Parse()

	client := &http.Client{Timeout: 2 * time.Minute}
	sessionID := uuid.NewString()

	color.Cyan("=== SocialSync conversation simulation ===")
	color.Cyan("Session: %s\n", sessionID)

	if err := post(client, *baseURL+"/reset", map[string]string{"session_id": sessionID}, nil); err != nil {
		color.Red("Reset failed: %v", err)
		os.Exit(1)
	}

	for _, text := range script {
		color.Yellow("\nUSER: %s", text)

		var res chatResponse
		start := time.Now()
		err := post(client, *baseURL+"/chat", chatRequest{SessionID: sessionID, Message: text}, &res)
		elapsed := time.Since(start).Round(time.Millisecond)
		if err != nil {
			color.Red("Error: %v", err)
			continue
		}

		color.Green("AI (%v): %s", elapsed, res.Text)
		for _, ev := range res.Events {
			color.Magenta("  * %s | %s | %s | %s", ev.Title, ev.Date, ev.Location, ev.Cost)
		}
		if res.MissionComplete {
			color.Cyan("\nMission complete.")
			return
		}
	}
}

func post(client *http.Client, url string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API Error %d: %s", resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
