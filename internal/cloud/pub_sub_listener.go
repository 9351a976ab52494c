// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cloud

import (
	"context"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/cor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PubSubListener feeds the messages of one subscription into a command. A message
// is acked only when the command finishes without recording an error; otherwise it
// is left to expire and be redelivered per the subscription's retry policy.
type PubSubListener struct {
	client       *pubsub.Client
	subscription *pubsub.Subscription
	command      cor.Command
}

func NewPubSubListener(
	pubsubClient *pubsub.Client,
	subscriptionID string,
	command cor.Command,
) (cmd *PubSubListener, err error) {
	cmd = &PubSubListener{
		client:       pubsubClient,
		subscription: pubsubClient.Subscription(subscriptionID),
		command:      command,
	}
	return cmd, nil
}

// SetCommand attaches the processing command. An already attached command is kept.
func (m *PubSubListener) SetCommand(command cor.Command) {
	if m.command == nil {
		m.command = command
	}
}

// Listen starts receiving in the background until ctx is cancelled.
func (m *PubSubListener) Listen(ctx context.Context) {
	if m.command == nil {
		slog.Warn("pubsub listener has no command attached; not listening", "subscription", m.subscription.ID())
		return
	}
	slog.Info("listening", "subscription", m.subscription.ID())

	go func() {
		tracer := otel.Tracer("message-listener")
		err := m.subscription.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
			spanCtx, span := tracer.Start(msgCtx, "receive-message")
			defer span.End()
			span.SetAttributes(attribute.String("msg.id", msg.ID))

			if HandleMessage(spanCtx, m.command, msg.Data) {
				span.SetStatus(codes.Ok, "success")
				msg.Ack()
				return
			}
			span.SetStatus(codes.Error, "failed")
		})
		if err != nil {
			slog.Error("error receiving data", "subscription", m.subscription.ID(), "error", err)
		}
	}()
}

// HandleMessage runs command over one message payload and reports whether the
// message may be acknowledged.
func HandleMessage(ctx context.Context, command cor.Command, data []byte) bool {
	chainCtx := cor.NewContextWith(ctx, string(data))

	command.Execute(chainCtx)
	if !chainCtx.HasErrors() {
		return true
	}
	for name, e := range chainCtx.GetErrors() {
		slog.ErrorContext(ctx, "error executing message chain", "command", name, "error", e)
	}
	return false
}
