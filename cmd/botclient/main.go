// Command botclient simulates a meeting bot: it registers a session,
// streams transcript frames over the websocket, and prints every
// LIVE_SUMMARY frame it receives back.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"ai-meeting-summary-service/internal/models"
)

type createSessionResponse struct {
	SessionID      string `json:"sessionId"`
	LiveSummaryURL string `json:"liveSummaryUrl"`
}

func main() {
	server := flag.String("server", "http://localhost:8080", "Service base URL")
	sessionID := flag.String("session", "", "Existing session id (empty creates a new session)")
	interval := flag.Duration("interval", 2*time.Second, "Delay between transcript frames")
	endMeeting := flag.Bool("end", true, "Send MEETING_END after the script finishes")
	flag.Parse()

	id := *sessionID
	if id == "" {
		var err error
		id, err = createSession(*server)
		if err != nil {
			log.Fatalf("failed to create session: %v", err)
		}
		log.Printf("Created session: %s", id)
	}

	wsURL, err := url.Parse(*server)
	if err != nil {
		log.Fatalf("invalid server URL: %v", err)
	}
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/ws/transcription"
	wsURL.RawQuery = "sessionId=" + id

	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()
	log.Printf("Connected to %s", wsURL)

	// Print summaries as they arrive.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame models.LiveSummary
			if err := json.Unmarshal(data, &frame); err != nil || frame.Type != models.MessageTypeLiveSummary {
				continue
			}
			fmt.Printf("\n--- LIVE SUMMARY ---\n%s\n--------------------\n", frame.Summary)
		}
	}()

	script := []struct {
		speaker string
		text    string
	}{
		{"Alice", "Welcome everyone, let's get started with the launch review"},
		{"Bob", "The backend migration finished yesterday with no downtime"},
		{"Alice", "Great, then the only open item is the security sign-off"},
		{"Carol", "I'll chase the security team today and report back tomorrow"},
		{"Bob", "Let's agree to freeze the release branch on Thursday"},
		{"Alice", "Agreed, Thursday freeze it is, Carol owns the sign-off follow-up"},
	}

	for _, line := range script {
		speaker := line.speaker
		msg := models.IncomingMessage{
			Type:        models.MessageTypeTranscript,
			SessionID:   id,
			Text:        line.text,
			SpeakerName: &speaker,
			IsFinal:     true,
		}
		log.Printf("Sending transcript: %s: %s", line.speaker, line.text)
		if err := conn.WriteJSON(msg); err != nil {
			log.Fatalf("failed to send transcript: %v", err)
		}
		time.Sleep(*interval)
	}

	// Linger so at least one more summary tick can arrive.
	time.Sleep(35 * time.Second)

	if *endMeeting {
		log.Println("Sending MEETING_END")
		if err := conn.WriteJSON(models.IncomingMessage{
			Type:      models.MessageTypeMeetingEnd,
			SessionID: id,
			Reason:    "scriptFinished",
		}); err != nil {
			log.Printf("failed to send meeting end: %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
}

func createSession(server string) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"meetingId": "demo-meeting",
		"threadId":  "demo-thread",
		"messageId": "demo-message",
		"tenantId":  "demo-tenant",
	})
	resp, err := http.Post(server+"/v1/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}
