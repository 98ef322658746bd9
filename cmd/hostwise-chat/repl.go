package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hostwise/assistant/internal/domain"
	"github.com/hostwise/assistant/internal/present"
	"github.com/hostwise/assistant/internal/purchase"
	"github.com/hostwise/assistant/internal/session"
)

const helpText = `Comandos:
  /new          nova conversa
  /list         listar conversas
  /open <n>     abrir a conversa n
  /delete <n>   excluir a conversa n
  /usage        ver uso do mês
  /buy          comprar mais mensagens
  /quit         sair
Qualquer outro texto é enviado ao assistente.`

// repl is the terminal view over a session controller.
type repl struct {
	ctrl *session.Controller
	flow *purchase.Flow
	in   *bufio.Scanner
	out  io.Writer
	loc  *time.Location
	now  func() time.Time

	printed map[string]bool
	listed  []domain.Conversation
	dirty   bool
}

// chatAPI is everything the view needs from the transport.
type chatAPI interface {
	session.API
	purchase.API
}

func newREPL(api chatAPI, navigator purchase.Navigator, in io.Reader, out io.Writer, loc *time.Location, logger *zap.Logger) *repl {
	r := &repl{
		in:      bufio.NewScanner(in),
		out:     out,
		loc:     loc,
		now:     time.Now,
		printed: make(map[string]bool),
	}
	r.ctrl = session.NewController(api, session.WithLogger(logger), session.WithOnChange(r.markDirty))
	r.flow = purchase.NewFlow(api, navigator, logger)
	return r
}

// markDirty is registered as the controller's change hook.
func (r *repl) markDirty() {
	r.dirty = true
}

func (r *repl) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.out, format, args...)
}

// run reads commands until /quit, EOF, ctx cancellation or a checkout handoff.
func (r *repl) run(ctx context.Context) error {
	r.ctrl.Start(ctx)
	r.printf("HostWise Assistente\n%s\n\n", helpText)
	r.printUsageBadge()

	for {
		if r.ctrl.State().ShowPurchase {
			r.printf("pacote> ")
		} else {
			r.printf("> ")
		}
		if ctx.Err() != nil || !r.in.Scan() {
			return r.in.Err()
		}

		input := strings.TrimSpace(r.in.Text())
		if input == "" {
			continue
		}

		done, err := r.handle(ctx, input)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (r *repl) handle(ctx context.Context, input string) (bool, error) {
	if r.ctrl.State().ShowPurchase {
		return r.handlePurchase(ctx, input)
	}

	cmd, arg, _ := strings.Cut(input, " ")
	switch cmd {
	case "/quit":
		r.printf("Até logo!\n")
		return true, nil
	case "/help":
		r.printf("%s\n", helpText)
	case "/new":
		r.ctrl.StartNewConversation()
		r.resetTranscript()
		r.printf("Nova conversa.\n")
	case "/list":
		r.printConversations()
	case "/open":
		conv, ok := r.pick(arg)
		if !ok {
			return false, nil
		}
		r.ctrl.LoadConversation(ctx, conv.ID)
		r.resetTranscript()
		r.printf("-- %s --\n", present.ConversationTitle(conv))
		r.printNewMessages()
	case "/delete":
		conv, ok := r.pick(arg)
		if !ok {
			return false, nil
		}
		wasActive := r.ctrl.State().ConversationID == conv.ID
		r.ctrl.DeleteConversation(ctx, conv.ID)
		if wasActive {
			r.resetTranscript()
		}
		r.listed = nil
		r.printf("Conversa excluída: %s\n", present.ConversationTitle(conv))
	case "/usage":
		r.printUsage()
	case "/buy":
		r.ctrl.OpenPurchase()
		r.printPacks(ctx)
	default:
		if strings.HasPrefix(cmd, "/") {
			r.printf("Comando desconhecido: %s\n", cmd)
			return false, nil
		}
		r.send(ctx, input)
	}
	return false, nil
}

func (r *repl) send(ctx context.Context, text string) {
	if r.ctrl.State().QuotaExhausted() {
		r.printf("Você atingiu o limite de mensagens. Use /buy para comprar mais.\n")
		return
	}

	r.dirty = false
	outcome := r.ctrl.SendMessage(ctx, text)
	if r.dirty {
		r.printNewMessages()
	}

	switch outcome {
	case session.SendSkipped:
		r.printf("Aguarde a resposta anterior.\n")
	case session.SendQuotaExceeded:
		r.printf("Limite de mensagens atingido.\n")
		r.printPacks(ctx)
	case session.SendReplied, session.SendFailed:
		r.printUsageBadge()
	}
}

func (r *repl) handlePurchase(ctx context.Context, input string) (bool, error) {
	if input == "/cancel" {
		r.ctrl.DismissPurchase()
		r.printf("Compra cancelada.\n")
		return false, nil
	}
	if input == "/quit" {
		return true, nil
	}

	index, err := strconv.Atoi(input)
	if err != nil {
		r.printf("Digite o número do pacote ou /cancel.\n")
		return false, nil
	}

	r.printf("Redirecionando para o pagamento...\n")
	err = r.flow.Purchase(ctx, index)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, purchase.ErrPackUnavailable):
		r.printf("Este pacote não está disponível no momento.\n")
	case errors.Is(err, purchase.ErrPurchaseInFlight):
		r.printf("Uma compra já está em andamento.\n")
	default:
		r.printf("Não foi possível iniciar a compra. Tente novamente.\n")
	}
	return false, nil
}

func (r *repl) pick(arg string) (domain.Conversation, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 || n > len(r.listed) {
		r.printf("Use /list e escolha um número válido.\n")
		return domain.Conversation{}, false
	}
	return r.listed[n-1], true
}

func (r *repl) resetTranscript() {
	r.printed = make(map[string]bool)
}

func (r *repl) printNewMessages() {
	for _, msg := range r.ctrl.State().Messages {
		if r.printed[msg.ID] {
			continue
		}
		r.printed[msg.ID] = true
		if msg.Role != domain.RoleUser {
			r.printf("Assistente: %s\n", msg.Content)
			continue
		}
		// A locally sent line is already on screen as typed input.
		if !msg.IsProvisional() {
			r.printf("Você: %s\n", msg.Content)
		}
	}
}

func (r *repl) printConversations() {
	state := r.ctrl.State()
	if len(state.Conversations) == 0 {
		r.printf("Nenhuma conversa ainda.\n")
		r.listed = nil
		return
	}

	r.listed = r.listed[:0]
	for _, group := range present.GroupConversations(state.Conversations, r.now(), r.loc) {
		r.printf("%s\n", group.Label)
		for _, conv := range group.Conversations {
			r.listed = append(r.listed, conv)
			marker := " "
			if conv.ID == state.ConversationID {
				marker = "*"
			}
			r.printf(" %s%2d. %s\n", marker, len(r.listed), present.ConversationTitle(conv))
			if preview := present.ConversationPreview(conv); preview != "" {
				r.printf("      %s\n", preview)
			}
		}
	}
}

func (r *repl) printUsageBadge() {
	usage := r.ctrl.State().Usage
	if usage == nil {
		return
	}
	r.printf("[%s]\n", present.UsageSummary(*usage))
}

func (r *repl) printUsage() {
	usage := r.ctrl.State().Usage
	if usage == nil {
		r.printf("Uso indisponível.\n")
		return
	}

	pct := present.UsagePercentage(*usage)
	r.printf("%s %s %.0f%% (%s)\n", present.UsageSummary(*usage), present.UsageBar(*usage, 20), pct, present.LevelFor(pct))
	r.printf("Disponíveis: %d. Renova em %s.\n", usage.TotalAvailable, usage.PeriodEnd.In(r.loc).Format("02/01/2006"))
}

func (r *repl) printPacks(ctx context.Context) {
	packs, err := r.flow.LoadPacks(ctx)
	if err != nil {
		r.printf("Não foi possível carregar os pacotes.\n")
		r.ctrl.DismissPurchase()
		return
	}

	r.printf("Pacotes de mensagens:\n")
	for _, p := range packs {
		line := fmt.Sprintf(" %d. %s  %s  (%s por mensagem)", p.Index, p.Label, present.FormatBRL(p.PriceInCents), present.PricePerMessage(p))
		if present.IsPopular(p) {
			line += "  " + present.PopularBadge
		}
		if !p.Available {
			line += "  indisponível"
		}
		r.printf("%s\n", line)
	}
	r.printf("Digite o número do pacote ou /cancel.\n")
}
