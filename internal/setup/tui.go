// Package setup runs the interactive configuration wizard.
package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/dexsnipe/config"
	"github.com/vadiminshakov/dexsnipe/internal/domain"
)

// OutputFile file the wizard writes.
const OutputFile = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers values collected by the wizard, all as typed.
type Answers struct {
	Endpoint     string
	Keypair      string
	Listen       string
	AutoScan     bool
	ScanInterval string
	MinLiquidity string
	MaxFDV       string
	BuySOL       string
	SlippageBps  string
	MaxImpactPct string
	PriorityFee  string
	Commitment   string
	PreSim       bool
}

// DefaultAnswers prefills the wizard from the built-in configuration.
func DefaultAnswers() Answers {
	d := config.Default()
	s := d.Settings
	return Answers{
		Endpoint:     d.Endpoint,
		Listen:       d.Listen,
		AutoScan:     s.AutoScan,
		ScanInterval: s.ScanInterval.String(),
		MinLiquidity: strconv.FormatFloat(s.Filters.MinLiquidityUSD, 'f', -1, 64),
		MaxFDV:       strconv.FormatFloat(s.Filters.MaxFDV, 'f', -1, 64),
		BuySOL:       s.Trading.BuySOL.String(),
		SlippageBps:  strconv.Itoa(s.Trading.SlippageBps),
		MaxImpactPct: s.Trading.MaxImpactPct.String(),
		PriorityFee:  strconv.FormatUint(s.Trading.PriorityFeeLamports, 10),
		Commitment:   s.Trading.Commitment.String(),
		PreSim:       s.Trading.PreTradeSimulation,
	}
}

func header(step string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("DEXSNIPE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

// RunTUI launches the terminal configuration wizard and returns the path of the written config.
func RunTUI() (string, error) {
	a := DefaultAnswers()
	var confirm bool

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("DEXSNIPE CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Scan, rank and snipe fresh Solana pairs.\n"))

	fmt.Println(stepStyle.Render("STEP 1: CONNECTION"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Solana RPC endpoint").
				Value(&a.Endpoint).
				Validate(validateURL),
			huh.NewInput().
				Title("Keypair file").
				Description("solana-keygen JSON file; leave empty for watch-only").
				Value(&a.Keypair).
				Validate(validateKeypairPath),
			huh.NewInput().
				Title("Operator API address").
				Description("e.g. :8080").
				Value(&a.Listen),
		),
	).Run()
	if err != nil {
		return "", err
	}

	header("STEP 2: SCANNER")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Scan automatically?").
				Value(&a.AutoScan),
			huh.NewInput().
				Title("Scan interval").
				Description("Duration string, minimum 5s").
				Value(&a.ScanInterval).
				Validate(validateInterval),
			huh.NewInput().
				Title("Min liquidity $").
				Value(&a.MinLiquidity).
				Validate(validateNonNegative),
			huh.NewInput().
				Title("Max FDV $").
				Value(&a.MaxFDV).
				Validate(validateNonNegative),
		),
	).Run()
	if err != nil {
		return "", err
	}

	header("STEP 3: TRADING")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Buy size (SOL)").
				Value(&a.BuySOL).
				Validate(validateNonNegative),
			huh.NewInput().
				Title("Slippage (bps)").
				Value(&a.SlippageBps).
				Validate(validateSlippage),
			huh.NewInput().
				Title("Max price impact %").
				Value(&a.MaxImpactPct).
				Validate(validateNonNegative),
			huh.NewInput().
				Title("Priority fee (lamports)").
				Value(&a.PriorityFee),
			huh.NewSelect[string]().
				Title("Confirmation level").
				Options(
					huh.NewOption("Processed", string(domain.CommitmentProcessed)),
					huh.NewOption("Confirmed", string(domain.CommitmentConfirmed)),
					huh.NewOption("Finalized", string(domain.CommitmentFinalized)),
				).
				Value(&a.Commitment),
			huh.NewConfirm().
				Title("Simulate a probe swap before each buy?").
				Value(&a.PreSim),
		),
	).Run()
	if err != nil {
		return "", err
	}

	header("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Endpoint: %s\nWallet: %s\nBuy: %s SOL\nSlippage: %s bps\nMax impact: %s%%\nCommitment: %s\n",
		a.Endpoint, orDash(a.Keypair), a.BuySOL, a.SlippageBps, a.MaxImpactPct, a.Commitment,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return "", err
	}
	if !confirm {
		return "", errors.New("setup cancelled by user")
	}

	data, err := Render(a)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(OutputFile, data, 0o600); err != nil {
		return "", errors.Wrap(err, "failed to save config file")
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting bot...", OutputFile)))
	time.Sleep(1500 * time.Millisecond)
	return OutputFile, nil
}

// Render converts answers into the yaml config document.
func Render(a Answers) ([]byte, error) {
	cfg := config.Default()
	tmp := cfg.ToTmp()

	tmp.Endpoint = strings.TrimSpace(a.Endpoint)
	tmp.Keypair = strings.TrimSpace(a.Keypair)
	tmp.Listen = strings.TrimSpace(a.Listen)
	tmp.AutoScan = &a.AutoScan
	tmp.PreTradeSimulated = &a.PreSim
	tmp.MinLiquidityStr = a.MinLiquidity
	tmp.MaxFDVStr = a.MaxFDV
	tmp.BuySOL = a.BuySOL
	tmp.SlippageBpsStr = a.SlippageBps
	tmp.MaxImpactPct = a.MaxImpactPct
	tmp.PriorityFeeStr = a.PriorityFee
	tmp.Commitment = a.Commitment

	interval, err := time.ParseDuration(a.ScanInterval)
	if err != nil {
		return nil, errors.Wrap(err, "scan interval")
	}
	tmp.ScanInterval = interval

	data, err := yaml.Marshal(tmp)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate yaml")
	}
	return data, nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "- (watch-only)"
	}
	return s
}

func validateURL(s string) error {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return errors.New("must start with http:// or https://")
	}
	return nil
}

func validateKeypairPath(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := os.Stat(s); err != nil {
		return errors.New("file not found")
	}
	return nil
}

func validateInterval(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return errors.New("must be a duration like 12s")
	}
	if d < domain.MinScanInterval {
		return errors.Errorf("must be at least %s", domain.MinScanInterval)
	}
	return nil
}

func validateNonNegative(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return errors.New("must be a valid number")
	}
	if d.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
}

func validateSlippage(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return errors.New("must be an integer")
	}
	if v < 0 || v > 10_000 {
		return errors.New("must be between 0 and 10000")
	}
	return nil
}
