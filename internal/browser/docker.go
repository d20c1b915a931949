package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const devtoolsPort = nat.Port("9222/tcp")

type DockerOptions struct {
	Image             string
	NavigationTimeout time.Duration
	ReadyTimeout      time.Duration // how long to wait for DevTools to answer
}

// DockerLauncher runs every session in a fresh headless-shell container and
// drives it over the DevTools port published on the loopback interface.
type DockerLauncher struct {
	cli  *client.Client
	http *resty.Client
	opts DockerOptions
	log  logrus.FieldLogger
}

func NewDockerLauncher(opts DockerOptions, log logrus.FieldLogger) (*DockerLauncher, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 30 * time.Second
	}
	return &DockerLauncher{
		cli:  cli,
		http: resty.New().SetTimeout(2 * time.Second),
		opts: opts,
		log:  log.WithField("launcher", "docker"),
	}, nil
}

func (l *DockerLauncher) Close() error {
	return l.cli.Close()
}

func (l *DockerLauncher) Launch(ctx context.Context) (Browser, error) {
	if err := l.ensureImage(ctx); err != nil {
		return nil, err
	}

	resp, err := l.cli.ContainerCreate(ctx, &container.Config{
		Image:        l.opts.Image,
		ExposedPorts: nat.PortSet{devtoolsPort: struct{}{}},
		Labels:       map[string]string{"prepusin.session": "true"},
	}, &container.HostConfig{
		PortBindings: nat.PortMap{
			devtoolsPort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: ""}},
		},
	}, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}
	id := resp.ID

	fail := func(err error) (Browser, error) {
		_ = l.remove(id)
		return nil, err
	}

	if err := l.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fail(fmt.Errorf("start container: %w", err))
	}
	info, err := l.cli.ContainerInspect(ctx, id)
	if err != nil {
		return fail(fmt.Errorf("inspect container: %w", err))
	}
	hostPort, err := devtoolsHostPort(info)
	if err != nil {
		return fail(err)
	}

	endpoint := "http://127.0.0.1:" + hostPort
	if err := waitDevTools(ctx, l.http, endpoint, l.opts.ReadyTimeout); err != nil {
		return fail(err)
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), "ws://127.0.0.1:"+hostPort)
	b, err := startChrome(allocCtx, allocCancel, l.opts.NavigationTimeout)
	if err != nil {
		return fail(err)
	}
	l.log.WithField("container", shortID(id)).Debug("browser container ready")
	return &dockerBrowser{chromeBrowser: b, launcher: l, id: id}, nil
}

func (l *DockerLauncher) ensureImage(ctx context.Context) error {
	_, _, err := l.cli.ImageInspectWithRaw(ctx, l.opts.Image)
	if err == nil {
		return nil
	}
	if !client.IsErrNotFound(err) {
		return fmt.Errorf("inspect image: %w", err)
	}
	l.log.WithField("image", l.opts.Image).Info("pulling browser image")
	reader, err := l.cli.ImagePull(ctx, l.opts.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image: %w", err)
	}
	defer reader.Close()
	_, err = io.Copy(io.Discard, reader)
	return err
}

func (l *DockerLauncher) remove(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := l.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		l.log.WithError(err).WithField("container", shortID(id)).Warn("remove container")
		return err
	}
	return nil
}

type dockerBrowser struct {
	*chromeBrowser
	launcher *DockerLauncher
	id       string
}

func (b *dockerBrowser) Close() error {
	return errors.Join(b.chromeBrowser.Close(), b.launcher.remove(b.id))
}

func devtoolsHostPort(info types.ContainerJSON) (string, error) {
	if info.NetworkSettings == nil {
		return "", errors.New("container has no network settings")
	}
	bindings := info.NetworkSettings.Ports[devtoolsPort]
	if len(bindings) == 0 || bindings[0].HostPort == "" {
		return "", fmt.Errorf("port %s is not published", devtoolsPort)
	}
	return bindings[0].HostPort, nil
}

type devtoolsVersion struct {
	Browser              string `json:"Browser"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// waitDevTools polls <endpoint>/json/version until the browser answers.
func waitDevTools(ctx context.Context, http *resty.Client, endpoint string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		var v devtoolsVersion
		resp, err := http.R().SetContext(ctx).SetResult(&v).Get(endpoint + "/json/version")
		if err == nil && resp.IsSuccess() && v.WebSocketDebuggerURL != "" {
			return nil
		}
		if time.Now().After(deadline) {
			if err == nil {
				err = fmt.Errorf("status %d", resp.StatusCode())
			}
			return fmt.Errorf("devtools at %s not ready: %w", endpoint, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
