// Package push defines the outbound push delivery capability.
//
// The actual provider (Expo, FCM, APNs relay) sits behind Sender; the core
// only knows how to hand a token, title, body and payload to it. Invalid
// tokens are the provider's problem: senders return an error per token and
// callers isolate failures per token.
package push

import "context"

// Sender delivers one push notification to one device token.
type Sender interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}
