package handlers

import (
	"fmt"
	"strings"

	"github.com/tmaxmax/go-sse"
)

const userTopicPrefix = "user-"

// transcriptReplayer keeps, per user topic, the rendered transcript as published so far and the
// latest scroll signal. A new SSE subscriber first receives that transcript as a single
// "transcript" event, so a history load that finished before the browser connected still reaches
// the page. Joe runs Put and Replay on its own goroutine, in publish order, so a subscriber never
// misses or duplicates a change published around the time it connects.
type transcriptReplayer struct {
	topics map[string]*topicReplay
}

type topicReplay struct {
	html   strings.Builder
	scroll *sse.Message
}

func newTranscriptReplayer() *transcriptReplayer {
	return &transcriptReplayer{topics: make(map[string]*topicReplay)}
}

func (r *transcriptReplayer) Put(msg *sse.Message, topics []string) (*sse.Message, error) {
	if len(topics) == 0 {
		return nil, sse.ErrNoTopic
	}

	for _, topic := range topics {
		if !strings.HasPrefix(topic, userTopicPrefix) {
			continue
		}
		tr, ok := r.topics[topic]
		if !ok {
			tr = &topicReplay{}
			r.topics[topic] = tr
		}

		switch msg.Type {
		case transcriptSSEType, messagesSSEType:
			data, err := messageData(msg)
			if err != nil {
				return msg, err
			}
			if msg.Type == transcriptSSEType {
				tr.html.Reset()
			}
			tr.html.WriteString(data)
		case scrollSSEType:
			tr.scroll = msg
		}
	}

	return msg, nil
}

func (r *transcriptReplayer) Replay(sub sse.Subscription) error {
	sent := false
	for _, topic := range sub.Topics {
		tr, ok := r.topics[topic]
		if !ok || tr.html.Len() == 0 {
			continue
		}

		msg := &sse.Message{Type: transcriptSSEType}
		msg.AppendData(tr.html.String())
		if err := sub.Client.Send(msg); err != nil {
			return err
		}
		if tr.scroll != nil {
			if err := sub.Client.Send(tr.scroll); err != nil {
				return err
			}
		}
		sent = true
	}

	if !sent {
		return nil
	}
	return sub.Client.Flush()
}

// messageData returns the data of msg as a browser would receive it.
func messageData(msg *sse.Message) (string, error) {
	for ev, err := range sse.Read(strings.NewReader(msg.String()), nil) {
		if err != nil {
			return "", fmt.Errorf("failed to read message data: %w", err)
		}
		return ev.Data, nil
	}
	return "", nil
}
