package notify

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/barrierlattice/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// NotifyReport imprime las valuaciones en el modo configurado.
func (c *Console) NotifyReport(_ context.Context, report domain.Report) error {
	if len(report.Valuations) == 0 {
		fmt.Fprintf(c.out, "[%s] no valuations\n", time.Now().Format("15:04:05"))
		return nil
	}

	if c.table {
		c.printReportTable(report)
	} else {
		c.printReportCompact(report)
	}
	return nil
}

// printReportCompact imprime una línea con todos los modelos.
func (c *Console) printReportCompact(report domain.Report) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", time.Now().Format("15:04:05"), report.Option)
	if report.HasReference {
		fmt.Fprintf(&sb, " | ref %.6f", report.Reference)
	}
	for _, v := range report.Valuations {
		fmt.Fprintf(&sb, " | %s(%d) %.6f", v.Model, v.Resolution, v.Price)
		if report.HasReference {
			fmt.Fprintf(&sb, " err %.2e", report.AbsError(v))
		}
	}
	fmt.Fprintln(c.out, sb.String())
}

// printReportTable imprime la tabla completa con diagnósticos por modelo.
func (c *Console) printReportTable(report domain.Report) {
	fmt.Fprintf(c.out, "\n[%s] %s  S0=%g r=%g sigma=%g\n",
		time.Now().Format("15:04:05"), report.Option,
		report.Market.Spot, report.Market.Rate, report.Market.Sigma)

	table := tablewriter.NewWriter(c.out)
	table.Header("Model", "Res", "Price", "Position", "Abs err", "Nodes", "Steps", "h", "k", "Barrier steps")

	for _, v := range report.Valuations {
		table.Append(
			v.Model,
			fmt.Sprintf("%d", v.Resolution),
			fmt.Sprintf("%.6f", v.Price),
			fmt.Sprintf("%.6f", v.PositionValue()),
			errLabel(report.AbsError(v)),
			fmt.Sprintf("%d", v.Nodes),
			fmt.Sprintf("%d", v.Steps),
			fmt.Sprintf("%.5f", v.PriceStep),
			fmt.Sprintf("%.5f", v.TimeStep),
			fmt.Sprintf("%d (%.4f)", v.BarrierSteps, v.EffectiveBarrier),
		)
	}
	table.Render()

	if report.HasReference {
		fmt.Fprintf(c.out, "  Analytical reference: %.6f\n", report.Reference)
	} else {
		fmt.Fprintln(c.out, "  Analytical reference: n/a for this contract")
	}
	fmt.Fprintln(c.out, "  Barrier steps = moves of size h from S0 to H (effective log distance)")
	fmt.Fprintln(c.out)
}

// NotifySweep imprime el barrido de convergencia y su resumen.
func (c *Console) NotifySweep(_ context.Context, sweep domain.Sweep) error {
	if len(sweep.Points) == 0 {
		fmt.Fprintf(c.out, "[%s] sweep %s: no points\n", time.Now().Format("15:04:05"), sweep.Model)
		return nil
	}

	fmt.Fprintf(c.out, "\n=== SWEEP %s: %s (%d points) ===\n", sweep.Model, sweep.Option, len(sweep.Points))
	if sweep.ID != "" {
		fmt.Fprintf(c.out, "  id: %s\n", sweep.ID)
	}

	if c.table {
		table := tablewriter.NewWriter(c.out)
		table.Header("Res", "Price", "Abs err", "Nodes", "h", "Barrier steps", "Error")
		for _, p := range sweep.Points {
			if !p.OK() {
				table.Append(fmt.Sprintf("%d", p.Resolution), "-", "-", "-", "-", "-", truncate(p.Err, 40))
				continue
			}
			table.Append(
				fmt.Sprintf("%d", p.Resolution),
				fmt.Sprintf("%.6f", p.Price),
				errLabel(p.AbsError),
				fmt.Sprintf("%d", p.Nodes),
				fmt.Sprintf("%.5f", p.PriceStep),
				fmt.Sprintf("%d", p.BarrierSteps),
				"",
			)
		}
		table.Render()
	}

	if sweep.HasReference {
		fmt.Fprintf(c.out, "  Analytical reference: %.6f\n", sweep.Reference)
	}
	if best, ok := sweep.Best(); ok {
		fmt.Fprintf(c.out, "  Best: res=%d price=%.6f err=%.2e nodes=%d\n",
			best.Resolution, best.Price, best.AbsError, best.Nodes)
	}
	if failed := sweep.Failed(); failed > 0 {
		fmt.Fprintf(c.out, "  WARNING: %d/%d points failed\n", failed, len(sweep.Points))
	}
	fmt.Fprintln(c.out)
	return nil
}

func errLabel(e float64) string {
	if math.IsNaN(e) {
		return "n/a"
	}
	return fmt.Sprintf("%.2e", e)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
