package server

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"quickpad/utils"
)

// ListenWithIPv6Fallback binds the server on a dual-stack IPv6 listener
// first and falls back to IPv4 when the host has no IPv6 support.
func ListenWithIPv6Fallback(app *fiber.App, port string) error {
	addrIPv6 := "[::]:" + port

	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			if network != "tcp6" {
				return nil
			}
			var sockErr error
			if controlErr := c.Control(func(fd uintptr) {
				sockErr = syscall.SetsockoptInt(int(fd), syscall.IPPROTO_IPV6, syscall.IPV6_V6ONLY, 0)
			}); controlErr != nil {
				return controlErr
			}
			return sockErr
		},
	}

	ln6, err := lc.Listen(context.Background(), "tcp6", addrIPv6)
	if err == nil {
		utils.LogInfo("HTTP server listening", "addr", addrIPv6, "stack", "ipv6")
		return app.Listener(ln6)
	}
	utils.LogError("IPV6_BIND", err, "addr", addrIPv6)

	addrIPv4 := "0.0.0.0:" + port
	ln4, err := net.Listen("tcp4", addrIPv4)
	if err != nil {
		utils.LogError("IPV4_BIND", err, "addr", addrIPv4)
		return err
	}
	utils.LogInfo("HTTP server listening", "addr", addrIPv4, "stack", "ipv4")
	return app.Listener(ln4)
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then drains the server.
// In-flight requests get the grace period to finish.
func WaitForShutdown(app *fiber.App, grace time.Duration) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	utils.LogInfo("Shutting down", "signal", sig.String())
	if err := app.ShutdownWithTimeout(grace); err != nil {
		utils.LogError("SHUTDOWN", err)
	}
}
