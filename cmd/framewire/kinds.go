package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/danmuck/framewire/internal/channel"
	"github.com/danmuck/framewire/internal/protocol/frame"
)

// kind ties one value type to its channel calls and its command-line form.
type kind struct {
	send    func(ctx context.Context, ch *channel.Channel, v any) error
	receive func(ctx context.Context, ch *channel.Channel) (any, error)
	parse   func(raw string) (any, error)
	format  func(v any) string
}

var kinds = map[string]kind{
	"bool": {
		send: func(ctx context.Context, ch *channel.Channel, v any) error { return ch.SendBool(ctx, v.(bool)) },
		receive: func(ctx context.Context, ch *channel.Channel) (any, error) {
			v, ok, err := ch.ReceiveBool(ctx)
			if err == nil && !ok {
				return nil, fmt.Errorf("peer sent a value that is not a bool")
			}
			return v, err
		},
		parse: func(raw string) (any, error) {
			v, ok := frame.ParseBool(strings.TrimSpace(raw))
			if !ok {
				return nil, fmt.Errorf("invalid bool %q", raw)
			}
			return v, nil
		},
		format: func(v any) string { return strconv.FormatBool(v.(bool)) },
	},
	"string": {
		send:    func(ctx context.Context, ch *channel.Channel, v any) error { return ch.SendString(ctx, v.(string)) },
		receive: func(ctx context.Context, ch *channel.Channel) (any, error) { return ch.ReceiveString(ctx) },
		parse:   func(raw string) (any, error) { return raw, nil },
		format:  func(v any) string { return v.(string) },
	},
	"int": {
		send:    func(ctx context.Context, ch *channel.Channel, v any) error { return ch.SendInt(ctx, v.(int64)) },
		receive: func(ctx context.Context, ch *channel.Channel) (any, error) { return ch.ReceiveInt(ctx) },
		parse: func(raw string) (any, error) {
			return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		},
		format: func(v any) string { return strconv.FormatInt(v.(int64), 10) },
	},
	"float": {
		send:    func(ctx context.Context, ch *channel.Channel, v any) error { return ch.SendFloat(ctx, v.(float64)) },
		receive: func(ctx context.Context, ch *channel.Channel) (any, error) { return ch.ReceiveFloat(ctx) },
		parse: func(raw string) (any, error) {
			return strconv.ParseFloat(strings.TrimSpace(raw), 64)
		},
		format: func(v any) string { return strconv.FormatFloat(v.(float64), 'f', -1, 64) },
	},
	"int-list": {
		send:    func(ctx context.Context, ch *channel.Channel, v any) error { return ch.SendIntList(ctx, v.([]int64)) },
		receive: func(ctx context.Context, ch *channel.Channel) (any, error) { return ch.ReceiveIntList(ctx) },
		parse:   func(raw string) (any, error) { return frame.ParseIntList(raw) },
		format:  func(v any) string { return frame.FormatIntList(v.([]int64)) },
	},
	"float-list": {
		send:    func(ctx context.Context, ch *channel.Channel, v any) error { return ch.SendFloatList(ctx, v.([]float64)) },
		receive: func(ctx context.Context, ch *channel.Channel) (any, error) { return ch.ReceiveFloatList(ctx) },
		parse:   func(raw string) (any, error) { return frame.ParseFloatList(raw) },
		format: func(v any) string {
			s, err := frame.FormatFloatList(v.([]float64))
			if err != nil {
				return fmt.Sprint(v)
			}
			return s
		},
	},
	// image values on the command line are file paths.
	"image": {
		send:    func(ctx context.Context, ch *channel.Channel, v any) error { return ch.SendImage(ctx, v.(image.Image)) },
		receive: func(ctx context.Context, ch *channel.Channel) (any, error) { return ch.ReceiveImage(ctx) },
		parse: func(raw string) (any, error) {
			data, err := os.ReadFile(strings.TrimSpace(raw))
			if err != nil {
				return nil, err
			}
			img, _, err := image.Decode(bytes.NewReader(data))
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", raw, err)
			}
			return img, nil
		},
		format: func(v any) string {
			b := v.(image.Image).Bounds()
			return fmt.Sprintf("image %dx%d", b.Dx(), b.Dy())
		},
	},
}

func lookupKind(name string) (kind, error) {
	k, ok := kinds[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return kind{}, fmt.Errorf("unknown kind %q (want one of %s)", name, strings.Join(kindNames(), ", "))
	}
	return k, nil
}

func kindNames() []string {
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
