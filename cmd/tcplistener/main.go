package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/fatih/color"

	"github.com/Brownie44l1/rawhttp/internal/headers"
	"github.com/Brownie44l1/rawhttp/internal/request"
	"github.com/Brownie44l1/rawhttp/internal/response"
	"github.com/Brownie44l1/rawhttp/internal/socket"
)

// tcplistener accepts connections one at a time, prints the parsed request
// and answers with a fixed text response.
func main() {
	port := flag.Int("port", 42069, "port to listen on")
	flag.Parse()

	listener, err := socket.Listen(*port)
	if err != nil {
		color.Red("listen: %v", err)
		os.Exit(1)
	}
	defer listener.Close()
	color.Green("Listening on port %d...", listener.Port())

	for {
		conn, err := listener.Accept()
		if err != nil {
			color.Red("accept error: %v", err)
			continue
		}

		handleConnection(conn)
	}
}

func handleConnection(conn *socket.Conn) {
	defer conn.Close()

	req, err := request.ReadFrom(conn)
	if err != nil {
		if err != io.EOF {
			color.Red("failed to read request from %s: %v", conn.RemoteAddr(), err)
			reply(conn, response.New().Error(response.StatusBadRequest, err.Error()))
		}
		return
	}

	label := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Println(label("Request line:"))
	fmt.Printf("- Method: %s\n", req.Method)
	fmt.Printf("- Target: %s\n", req.Path())
	fmt.Printf("- Version: %s\n", req.Version)

	fmt.Println(label("Headers:"))
	h := req.Headers()
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("- %s: %s\n", name, h[name])
	}

	fmt.Println(label("Body:"))
	fmt.Printf("%s\n", req.Body())

	reply(conn, response.StatusOK, "Hello from your HTTP server!\n")
}

// reply streams the response a part at a time and reports what went out.
func reply(conn *socket.Conn, code response.StatusCode, body string) {
	h := headers.New()
	h.Set("Content-Type", "text/plain")
	h.Set("Content-Length", strconv.Itoa(len(body)))

	w := response.NewWriter(conn)
	err := w.WriteStatusLine(code)
	if err == nil {
		err = w.WriteHeaders(h)
	}
	if err == nil {
		err = w.WriteBody([]byte(body))
	}
	if err != nil || w.HadError() {
		color.Red("write to %s failed after %d bytes: %v", conn.RemoteAddr(), w.BytesWritten(), err)
		return
	}
	color.Green("-> %d %s (%d bytes)", w.StatusCode(), response.StatusText(w.StatusCode()), w.BytesWritten())
}
