package daemon

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// RunShell reads one command per line from in until "sair" is read or in
// reaches EOF, dispatching "enviar" and "tabela" (§6's command surface).
// It calls stop when "sair" is seen or the input is exhausted; stop is
// expected to end the Router, e.g. Router.Shutdown or the cancel function
// of the context passed to Run (what cmd/roteador passes).
func RunShell(in io.Reader, out io.Writer, r *Router, log logrus.FieldLogger, stop func()) {
	fmt.Fprintln(out, "Comandos disponíveis:")
	fmt.Fprintln(out, "  enviar <IP_DESTINO> <mensagem> - Envia mensagem de texto")
	fmt.Fprintln(out, "  tabela - Exibe tabela de roteamento")
	fmt.Fprintln(out, "  sair - Encerra o roteador")
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "sair":
			stop()
			return
		case line == "tabela":
			printTable(out, r)
		case strings.HasPrefix(line, "enviar "):
			dispatchSend(out, r, log, line)
		default:
			fmt.Fprintf(out, "Comando desconhecido: %s\n", line)
		}
	}
	stop()
}

func dispatchSend(out io.Writer, r *Router, log logrus.FieldLogger, line string) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		fmt.Fprintln(out, "Uso: enviar <IP_DESTINO> <mensagem>")
		return
	}
	dst, text := parts[1], parts[2]
	if err := r.Send(dst, text); err != nil {
		fmt.Fprintf(out, "Erro: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Mensagem enviada para %s\n", dst)
}

func printTable(out io.Writer, r *Router) {
	snap := r.TableSnapshot()
	if len(snap) == 0 {
		fmt.Fprintln(out, "Tabela vazia")
		return
	}
	fmt.Fprintf(out, "\n%-20s %-10s %-20s\n", "IP Destino", "Métrica", "IP Saída")
	fmt.Fprintln(out, strings.Repeat("-", 50))
	for _, rt := range snap {
		fmt.Fprintf(out, "%-20s %-10d %-20s\n", rt.Destination, rt.Metric, rt.NextHop)
	}
}
