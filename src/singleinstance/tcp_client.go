package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

type tcpClient struct{}

func newTcpClient() Client { return &tcpClient{} }

func (c *tcpClient) Send(ctx context.Context, cmd Command) (bool, string, error) {
	port, ok := Ports().find(ctx, probeTimeout(ctx, defaultProbeTimeout))
	if !ok {
		return false, "", nil
	}
	// The resident answers CAPTURE immediately, so the remaining ctx budget
	// covers the whole exchange.
	reply, err := request(residentAddr(port), cmd, probeTimeout(ctx, 2*time.Second))
	return true, reply, err
}

func residentAddr(port int) string {
	return net.JoinHostPort(residentHost, strconv.Itoa(port))
}

func request(addr string, cmd Command, timeout time.Duration) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(string(cmd) + "\n"); err != nil {
		return "", err
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	body, _ := io.ReadAll(br)
	switch status {
	case successLine:
		return string(body), nil
	case errorLine:
		return "", errors.New(string(body))
	default:
		return "", fmt.Errorf("unexpected resident reply %q", status)
	}
}
