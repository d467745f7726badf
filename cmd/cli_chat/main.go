package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	server := flag.String("server", envOr("PSY_SERVER", "http://localhost:8080"), "base URL del relay")
	credential := flag.String("credential", os.Getenv("PSY_CREDENTIAL"), "ID token de Google para iniciar sesión")
	timeout := flag.Duration("timeout", 90*time.Second, "timeout por request")
	flag.Parse()

	if strings.TrimSpace(*credential) == "" {
		log.Fatal("falta la credencial: usa -credential o PSY_CREDENTIAL")
	}

	ctx := context.Background()
	client := newRelayClient(*server, *timeout)
	if err := client.login(ctx, *credential); err != nil {
		log.Fatal(err)
	}

	if err := repl(ctx, client, os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// repl lee mensajes línea a línea. Comandos: /me, /theme <valor>, /quit.
func repl(ctx context.Context, client *relayClient, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	fmt.Fprintln(out, "---- Chat (/me, /theme <valor>, /quit) ----")
	for {
		fmt.Fprint(out, "Tu > ")
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("leer input: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			continue
		case line == "/quit":
			if err := client.logout(ctx); err != nil {
				fmt.Fprintf(out, "Error cerrando sesión: %v\n", err)
			}
			return nil
		case line == "/me":
			p, err := client.profile(ctx)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "%s <%s> tema=%s idioma=%s sesiones=%d\n", p.Name, p.Email, p.Theme, p.Language, len(p.Transcripts))
		case strings.HasPrefix(line, "/theme"):
			theme := strings.TrimSpace(strings.TrimPrefix(line, "/theme"))
			if theme == "" {
				fmt.Fprintln(out, "Uso: /theme <valor>")
				continue
			}
			if err := client.setTheme(ctx, theme); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "Tema actualizado a %s\n", theme)
		default:
			reply, err := client.chat(ctx, line)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "Psy > %s\n", reply)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
