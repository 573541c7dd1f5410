// Package deepgram implements the streaming speech-synthesis contract on
// Deepgram's speak websocket API.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/invorto/voice-core/core/audio"
	"github.com/invorto/voice-core/core/texttospeech"
)

type deepgramVoice string

const (
	VoiceAuraAsteria deepgramVoice = "aura-2-asteria-en"
	VoiceAuraThalia  deepgramVoice = "aura-2-thalia-en"
	VoiceAuraOrion   deepgramVoice = "aura-2-orion-en"

	defaultVoice = VoiceAuraAsteria
)

func GetAvailableVoices() []deepgramVoice {
	return []deepgramVoice{VoiceAuraAsteria, VoiceAuraThalia, VoiceAuraOrion}
}

type TextToSpeechClient struct {
	mu      sync.Mutex
	wsConn  *websocket.Conn
	options texttospeech.TextToSpeechOptions

	voice deepgramVoice
}

func NewTextToSpeechClient(voice deepgramVoice) (*TextToSpeechClient, error) {
	client := &TextToSpeechClient{voice: defaultVoice}
	if voice != "" {
		found := false
		for _, available := range GetAvailableVoices() {
			if available == voice {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("invalid voice")
		}
		client.voice = voice
	}
	return client, nil
}

// OpenStream connects to the speak websocket and starts delivering audio
// chunks to the configured callbacks.
func (c *TextToSpeechClient) OpenStream(ctx context.Context, opts ...texttospeech.TextToSpeechOption) error {
	options := texttospeech.TextToSpeechOptions{
		SpeechAudioCallback: func([]byte) {},
		SpeechEndedCallback: func() {},
		ErrorCallback:       func(error) {},
		EncodingInfo:        audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	conn, err := connectWebsocket(c.voice, options.EncodingInfo)
	if err != nil {
		return fmt.Errorf("failed to open websocket: %w", err)
	}

	c.mu.Lock()
	c.wsConn = conn
	c.options = options
	c.mu.Unlock()

	go c.processIncomingMessages(ctx, conn, options)

	return nil
}

func connectWebsocket(voice deepgramVoice, encodingInfo audio.EncodingInfo) (*websocket.Conn, error) {
	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	urlValues := url.Values{}
	urlValues.Set("encoding", encodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
	urlValues.Set("model", string(voice))
	urlValues.Set("container", "none")

	conn, _, err := websocket.DefaultDialer.Dial(
		(&url.URL{
			Scheme: "wss",
			Host:   "api.deepgram.com", Path: "/v1/speak",
			RawQuery: urlValues.Encode(),
		}).String(),
		http.Header{"Authorization": {"token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

// Synthesize queues text for generation and flushes so audio starts
// streaming without waiting for more input.
func (c *TextToSpeechClient) Synthesize(text string) error {
	if err := c.sendWebsocketMessage(sendTextMsg(text)); err != nil {
		return fmt.Errorf("failed to send text to deepgram: %w", err)
	}
	if err := c.sendWebsocketMessage(flushMsg); err != nil {
		return fmt.Errorf("failed to flush deepgram buffer: %w", err)
	}
	return nil
}

// Interrupt discards queued and in-flight synthesis immediately.
func (c *TextToSpeechClient) Interrupt() error {
	if err := c.sendWebsocketMessage(clearMsg); err != nil {
		return fmt.Errorf("failed to clear deepgram buffer: %w", err)
	}
	return nil
}

func (c *TextToSpeechClient) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.wsConn == nil {
		return nil
	}

	if err := c.wsConn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: "Close"}); err != nil {
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return nil
}

func (c *TextToSpeechClient) sendWebsocketMessage(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.wsConn == nil {
		return fmt.Errorf("deepgram connection not open")
	}
	return c.wsConn.WriteJSON(msg)
}

func (c *TextToSpeechClient) processIncomingMessages(ctx context.Context, conn *websocket.Conn, options texttospeech.TextToSpeechOptions) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if err.Error() != "websocket: close 1000 (normal)" {
				logger.Error("deepgram websocket read error", "error", err)
				options.ErrorCallback(err)
			}

			c.mu.Lock()
			c.wsConn = nil
			c.mu.Unlock()
			conn.Close()
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			options.SpeechAudioCallback(msg)
		case websocket.TextMessage:
			var parsedMsg struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				options.SpeechEndedCallback()
			case "Warning":
				logger.Warn("deepgram speak warning", "message", string(msg))
			}
		}
	}
}

type textMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func sendTextMsg(text string) textMsg {
	return textMsg{Type: "Speak", Text: text}
}

type controlMsg struct {
	Type string `json:"type"`
}

var (
	flushMsg = controlMsg{Type: "Flush"}
	clearMsg = controlMsg{Type: "Clear"}
)
