// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/dowser-dev/dowser/internal/config"
	"github.com/dowser-dev/dowser/internal/embedding"
	"github.com/dowser-dev/dowser/internal/secrets"
	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

// initHTTPClient is the HTTP client used for provider validation.
// Exposed as a variable so tests can replace it.
var initHTTPClient = &http.Client{Timeout: 10 * time.Second}

// ProviderType aliases embedding.ProviderName for use in the init wizard.
type ProviderType = embedding.ProviderName

// StorageBackend names a persistence backend choice in the wizard.
type StorageBackend string

const (
	BackendFile   StorageBackend = "file"
	BackendSQLite StorageBackend = "sqlite"
)

// initWizardStep tracks which step of the wizard is active.
type initWizardStep int

const (
	stepProvider     initWizardStep = iota // select embedding provider
	stepAPIKey                             // enter API key (or ollama endpoint)
	stepValidateKey                        // validating credential (spinner)
	stepBackend                            // select storage backend
	stepSchemaPath                         // enter schema document path
	stepDone                               // wizard complete
	stepError                              // terminal error
)

// initResult holds the collected wizard configuration.
type initResult struct {
	Provider   ProviderType
	APIKey     string
	Endpoint   string // ollama only
	Backend    StorageBackend
	SchemaPath string
}

// --- bubbletea messages ---

type (
	validationSuccessMsg struct{ step initWizardStep }
	validationErrorMsg   struct {
		step initWizardStep
		err  error
	}
)
type configWrittenMsg struct{ path string }

// --- lipgloss styles ---

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

var supportedProviders = []ProviderType{
	embedding.ProviderOpenAI,
	embedding.ProviderGoogle,
	embedding.ProviderOllama,
}

var supportedBackends = []StorageBackend{
	BackendFile,
	BackendSQLite,
}

// initModel is the bubbletea model for the init wizard.
type initModel struct {
	step           initWizardStep
	providerIdx    int
	backendIdx     int
	keyInput       textinput.Model
	schemaInput    textinput.Model
	spinner        spinner.Model
	result         initResult
	validationErr  string
	configPath     string
	secretStore    secrets.Store
	errFinal       error
	forceOverwrite bool
}

func newInitModel(store secrets.Store) initModel {
	key := textinput.New()
	key.Placeholder = "paste API key here"
	key.EchoMode = textinput.EchoPassword
	key.EchoCharacter = '•'

	schema := textinput.New()
	schema.Placeholder = "/path/to/schema.yaml (optional, enter to skip)"

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return initModel{
		step:        stepProvider,
		keyInput:    key,
		schemaInput: schema,
		spinner:     sp,
		secretStore: store,
	}
}

func (m initModel) Init() tea.Cmd {
	return nil
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case validationSuccessMsg:
		m.step = stepBackend
		return m, nil

	case validationErrorMsg:
		m.validationErr = msg.err.Error()
		m.step = stepAPIKey
		m.keyInput.Focus()
		return m, nil

	case configWrittenMsg:
		m.step = stepDone
		m.configPath = msg.path
		return m, tea.Quit

	case error:
		m.step = stepError
		m.errFinal = msg
		return m, tea.Quit
	}

	return m.updateInputs(msg)
}

func (m initModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.step {
	case stepProvider:
		return m.handleProviderKey(msg)
	case stepAPIKey:
		return m.handleKeyInput(msg)
	case stepBackend:
		return m.handleBackendKey(msg)
	case stepSchemaPath:
		return m.handleSchemaInput(msg)
	}
	return m, nil
}

func (m initModel) handleProviderKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.providerIdx > 0 {
			m.providerIdx--
		}
	case "down", "j":
		if m.providerIdx < len(supportedProviders)-1 {
			m.providerIdx++
		}
	case "enter":
		m.result.Provider = supportedProviders[m.providerIdx]
		m.step = stepAPIKey
		m.validationErr = ""
		m.keyInput.SetValue("")
		if m.result.Provider == embedding.ProviderOllama {
			// Ollama wants an endpoint, not a key; no point masking it.
			m.keyInput.Placeholder = "http://localhost:11434"
			m.keyInput.EchoMode = textinput.EchoNormal
		} else {
			m.keyInput.Placeholder = "paste API key here"
			m.keyInput.EchoMode = textinput.EchoPassword
		}
		m.keyInput.Focus()
		return m, textinput.Blink
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleKeyInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		value := strings.TrimSpace(m.keyInput.Value())
		if m.result.Provider == embedding.ProviderOllama {
			if value == "" {
				value = "http://localhost:11434"
			}
			m.result.Endpoint = value
		} else {
			if value == "" {
				m.validationErr = "API key must not be empty"
				return m, nil
			}
			m.result.APIKey = value
		}
		m.validationErr = ""
		m.step = stepValidateKey
		return m, tea.Batch(
			m.spinner.Tick,
			validateCredentialCmd(m.result),
		)
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.keyInput, cmd = m.keyInput.Update(msg)
	return m, cmd
}

func (m initModel) handleBackendKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.backendIdx > 0 {
			m.backendIdx--
		}
	case "down", "j":
		if m.backendIdx < len(supportedBackends)-1 {
			m.backendIdx++
		}
	case "enter":
		m.result.Backend = supportedBackends[m.backendIdx]
		m.step = stepSchemaPath
		m.schemaInput.SetValue("")
		m.schemaInput.Focus()
		return m, textinput.Blink
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleSchemaInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.result.SchemaPath = strings.TrimSpace(m.schemaInput.Value())
		return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.schemaInput, cmd = m.schemaInput.Update(msg)
	return m, cmd
}

func (m initModel) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.step {
	case stepAPIKey:
		var cmd tea.Cmd
		m.keyInput, cmd = m.keyInput.Update(msg)
		return m, cmd
	case stepSchemaPath:
		var cmd tea.Cmd
		m.schemaInput, cmd = m.schemaInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m initModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  Dowser Setup Wizard  ") + "\n\n")

	switch m.step {
	case stepProvider:
		b.WriteString(promptStyle.Render("Step 1/3: Pick an embedding provider") + "\n\n")
		for i, p := range supportedProviders {
			if i == m.providerIdx {
				b.WriteString(selectedStyle.Render("  > "+string(p)) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+string(p)) + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepAPIKey:
		label := string(m.result.Provider) + " API key"
		if m.result.Provider == embedding.ProviderOllama {
			label = "Ollama endpoint"
		}
		b.WriteString(promptStyle.Render("Step 1/3: "+label) + "\n\n")
		b.WriteString(m.keyInput.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))

	case stepValidateKey:
		b.WriteString(m.spinner.View() + " Validating " + string(m.result.Provider) + " credentials…\n")

	case stepBackend:
		b.WriteString(promptStyle.Render("Step 2/3: Pick a storage backend") + "\n\n")
		for i, be := range supportedBackends {
			if i == m.backendIdx {
				b.WriteString(selectedStyle.Render("  > "+string(be)) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+string(be)) + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepSchemaPath:
		b.WriteString(promptStyle.Render("Step 3/3: Schema document path") + "\n\n")
		b.WriteString(m.schemaInput.View() + "\n")
		b.WriteString("\n" + dimStyle.Render("enter to continue (empty skips)  ctrl+c to quit"))

	case stepDone:
		b.WriteString(successStyle.Render("  Setup complete!  ") + "\n\n")
		if m.configPath != "" {
			b.WriteString(dimStyle.Render("Config written to: "+m.configPath) + "\n\n")
		}
		b.WriteString("Run " + promptStyle.Render("dowser serve") + " and " + promptStyle.Render("dowser index build") + " to get started.\n")
		b.WriteString("Run " + promptStyle.Render("dowser doctor") + " to verify setup.\n")

	case stepError:
		b.WriteString(errorStyle.Render("Setup failed: "+m.errFinal.Error()) + "\n")
	}

	return boxStyle.Render(b.String())
}

// --- tea.Cmd factories ---

func validateCredentialCmd(result initResult) tea.Cmd {
	return func() tea.Msg {
		var err error
		if result.Provider == embedding.ProviderOllama {
			err = embedding.ValidateEndpoint(context.Background(), initHTTPClient, result.Endpoint)
		} else {
			err = embedding.ValidateKey(context.Background(), initHTTPClient, result.Provider, result.APIKey)
		}
		if err != nil {
			return validationErrorMsg{step: stepValidateKey, err: err}
		}
		return validationSuccessMsg{step: stepValidateKey}
	}
}

func writeConfigCmd(result initResult, store secrets.Store, forceOverwrite bool) tea.Cmd {
	return func() tea.Msg {
		path, err := storeSecretAndWriteConfig(result, store, forceOverwrite)
		if err != nil {
			return err
		}
		return configWrittenMsg{path: path}
	}
}

// --- Config generation (exported for tests) ---

// GenerateConfigYAML produces a minimal dowser.yaml from the wizard result.
// API keys are referenced via keyring:// URIs; the actual secrets are stored
// separately via storeSecretAndWriteConfig.
func GenerateConfigYAML(result initResult) string {
	var sb strings.Builder
	sb.WriteString("# Dowser configuration (generated by dowser init)\n\n")

	sb.WriteString("server:\n")
	sb.WriteString("  listen: \"127.0.0.1:8847\"\n\n")

	if result.SchemaPath != "" {
		sb.WriteString("schema:\n")
		sb.WriteString(fmt.Sprintf("  path: %q\n\n", result.SchemaPath))
	}

	sb.WriteString("embedding:\n")
	sb.WriteString(fmt.Sprintf("  default: %q\n", defaultModelForProvider(result.Provider)))
	sb.WriteString("  providers:\n")
	sb.WriteString(fmt.Sprintf("    %s:\n", result.Provider))
	if result.Provider == embedding.ProviderOllama {
		sb.WriteString(fmt.Sprintf("      endpoint: %q\n\n", result.Endpoint))
	} else {
		sb.WriteString(fmt.Sprintf("      api_key: %q\n\n", secrets.ProviderKeyURI(string(result.Provider))))
	}

	sb.WriteString("search:\n")
	sb.WriteString("  threshold: 0.3\n")
	sb.WriteString("  top_k: 5\n")
	sb.WriteString("  semantic_weight: 0.7\n")
	sb.WriteString("  lexical_weight: 0.3\n\n")

	sb.WriteString("storage:\n")
	sb.WriteString(fmt.Sprintf("  backend: %s\n", result.Backend))

	return sb.String()
}

// defaultModelForProvider returns the default embedding model ref for a provider.
func defaultModelForProvider(p ProviderType) string {
	switch p {
	case embedding.ProviderOpenAI:
		return "openai/text-embedding-3-small"
	case embedding.ProviderGoogle:
		return "google/text-embedding-004"
	case embedding.ProviderOllama:
		return "ollama/nomic-embed-text"
	default:
		return string(p) + "/default"
	}
}

// storeSecretAndWriteConfig saves the API key to the OS keyring and writes
// the config YAML to the default config path.
//
// When forceOverwrite is false and the config file already exists, an error
// is returned asking the user to pass --force. When forceOverwrite is true
// the entire config is overwritten (full re-init).
func storeSecretAndWriteConfig(result initResult, store secrets.Store, forceOverwrite bool) (string, error) {
	// Ollama carries no secret; everything else stores its key first.
	// NOTE: If the config write fails below, a key already stored in the
	// keyring is not rolled back. Orphaned keyring entries are harmless
	// and overwritten on a successful re-run.
	if result.Provider != embedding.ProviderOllama {
		keyName := secrets.ProviderKey(string(result.Provider))
		if err := store.Store(secrets.Service, keyName, result.APIKey); err != nil {
			return "", dowsererr.Errorf(dowsererr.CodeSecretStoreFailure, "storing %s API key: %w", result.Provider, err)
		}
	}

	cfgPath, err := configPathForWrite()
	if err != nil {
		return "", err
	}

	// Check for existing config unless --force is set.
	if !forceOverwrite {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return "", dowsererr.Errorf(dowsererr.CodeConfigAlreadyExists,
				"config file already exists at %s; use --force to overwrite", cfgPath)
		}
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", dowsererr.Errorf(dowsererr.CodeConfigLoadReadFailure, "creating config directory %s: %w", dir, err)
	}

	yaml := GenerateConfigYAML(result)
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		return "", dowsererr.Errorf(dowsererr.CodeConfigLoadReadFailure, "writing config to %s: %w", cfgPath, err)
	}

	return cfgPath, nil
}

// configPathForWrite returns the default config path. Exported as a
// variable so tests can override it.
var configPathForWrite = config.DefaultConfigPath

// --- Cobra command ---

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard for Dowser",
		Long: `Run an interactive TUI wizard that walks you through:
  1. Picking an embedding provider (OpenAI, Google, Ollama)
  2. Picking a storage backend (file, sqlite)
  3. Pointing dowser at your schema document

API keys are stored securely in the OS keyring and referenced via
keyring:// URIs in the config file. No secrets are written in plain text.

After completion, run:
  dowser serve        start the daemon
  dowser index build  build the vector index
  dowser doctor       verify your setup`,
		RunE: runInit,
	}

	cmd.Flags().Bool("force", false, "Overwrite existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	// Refuse to run interactively when stdin is not a terminal.
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"dowser init requires an interactive terminal.\n"+
				"To configure Dowser non-interactively, edit ~/.config/dowser/dowser.yaml directly.")
		return dowsererr.New(dowsererr.CodeCLISetupFailure, "dowser init: not an interactive terminal")
	}

	forceOverwrite, _ := cmd.Flags().GetBool("force")

	m := newInitModel(secretStoreFactory())
	m.forceOverwrite = forceOverwrite

	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return dowsererr.Errorf(dowsererr.CodeCLISetupFailure, "init wizard error: %w", err)
	}

	fm, ok := finalModel.(initModel)
	if !ok {
		return dowsererr.New(dowsererr.CodeCLISetupFailure, "unexpected model type after wizard")
	}

	if fm.errFinal != nil {
		return dowsererr.Errorf(dowsererr.CodeCLISetupFailure, "init failed: %w", fm.errFinal)
	}

	// A user quitting early (not done) is fine, just return.
	return nil
}

// isTerminal reports whether f is a terminal file descriptor.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
