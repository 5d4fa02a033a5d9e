package notify_libnotify

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const appName = "star-backup"

type Notifier struct {
	soft bool
	bin  string
	opt  Options
}

type Options struct {
	Urgency string
	Expire  time.Duration
}

func New(opt Options) *Notifier { return &Notifier{soft: false, bin: "notify-send", opt: opt} }
func NewSoft(opt Options) *Notifier { return &Notifier{soft: true, bin: "notify-send", opt: opt} }

// Notify shows a desktop notification. A soft notifier ignores a missing
// notify-send or a session without a notification daemon.
func (n *Notifier) Notify(ctx context.Context, title, body, url string) error {
	cmd := exec.CommandContext(ctx, n.bin, n.args(title, body, url)...)
	if err := cmd.Run(); err != nil {
		if n.soft {
			return nil
		}
		return err
	}
	return nil
}

func (n *Notifier) args(title, body, url string) []string {
	if strings.TrimSpace(url) != "" {
		if body == "" {
			body = url
		} else {
			body = body + "\n" + url
		}
	}

	args := []string{"--app-name=" + appName}
	if n.opt.Urgency != "" {
		args = append(args, "--urgency="+n.opt.Urgency)
	}
	if n.opt.Expire > 0 {
		ms := strconv.Itoa(int(n.opt.Expire / time.Millisecond))
		args = append(args, "--expire-time="+ms)
	}
	return append(args, title, body)
}
