package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/roman-kulish/spectrum-scope/internal/publish"
	"github.com/roman-kulish/spectrum-scope/internal/render"
	"github.com/roman-kulish/spectrum-scope/internal/spectrum"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	msg, err := receiveFrame(ctx, config.URL, logger)
	if err != nil {
		return err
	}

	peak := spectrum.PeakBin(msg.Freq)
	peakFrequency := spectrum.BinFrequency(peak, config.SampleRate, len(msg.Time))
	value, prefix := humanize.ComputeSI(peakFrequency)

	logger.Info("received frame",
		slog.Group("peak",
			slog.Int("bin", peak),
			slog.String("frequency", humanize.Ftoa(value)+" "+prefix+"Hz"),
			slog.Float64("magnitude", msg.Freq[peak]),
		))

	panel, err := render.NewPanel(config.Panel, config.SampleRate)
	if err != nil {
		return fmt.Errorf("creating panel: %w", err)
	}

	img, err := panel.Draw(msg.Freq)
	if err != nil {
		return fmt.Errorf("rendering spectrum: %w", err)
	}

	logger.Info("writing image",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Panel.Theme)),
			slog.Int("width", config.Panel.Width),
			slog.Int("height", config.Panel.Height),
		))

	return writeImage(config.OutputFile, config.Format, img)
}

// receiveFrame connects as an observer and returns the first valid wire
// message. Messages that fail to parse are skipped.
func receiveFrame(ctx context.Context, url string, logger *slog.Logger) (*publish.WireMessage, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", url, err)
	}
	defer conn.Close()

	// Cancellation unblocks a pending read.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("waiting for a frame: %w", ctxErr)
			}
			return nil, fmt.Errorf("reading from %s: %w", url, err)
		}

		msg, err := publish.ParseWireMessage(data)
		if err != nil {
			logger.Warn("skipping message", slog.Any("error", err))
			continue
		}

		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		return msg, nil
	}
}

func writeImage(path string, format ImageFormat, img image.Image) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()

	switch format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})

	default:
		err = fmt.Errorf("invalid image format: %s", format)
	}
	return err
}
