package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BashCompletion completes the edushop commands and their flags.
const BashCompletion = `#!/bin/bash
# Bash completion for edushop

_edushop_completion() {
    local cur prev
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    local commands="serve healthcheck createsuperuser completion help"

    case "${prev}" in
        healthcheck)
            COMPREPLY=( $(compgen -W "--url --timeout" -- ${cur}) )
            return 0
            ;;
        createsuperuser)
            COMPREPLY=( $(compgen -W "--username --email --password" -- ${cur}) )
            return 0
            ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh fish --install" -- ${cur}) )
            return 0
            ;;
    esac

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "${commands}" -- ${cur}) )
    fi
}

complete -F _edushop_completion edushop
`

// ZshCompletion is the zsh variant of BashCompletion.
const ZshCompletion = `#compdef edushop

_edushop() {
    local -a commands
    commands=(
        'serve:Run the HTTP API (default)'
        'healthcheck:Probe a running instance'
        'createsuperuser:Create a staff account'
        'completion:Print a shell completion script'
        'help:Show help'
    )

    _arguments -C \
        '1: :->command' \
        '*:: :->args'

    case $state in
        command)
            _describe 'command' commands
            ;;
        args)
            case $words[1] in
                healthcheck)
                    _arguments '--url[Base URL]:url:' '--timeout[Request timeout]:duration:'
                    ;;
                createsuperuser)
                    _arguments '--username[Login name]:name:' '--email[Email]:email:' '--password[Password]:password:'
                    ;;
                completion)
                    _arguments '1:shell:(bash zsh fish)' '--install[Install the script]'
                    ;;
            esac
            ;;
    esac
}

_edushop "$@"
`

// FishCompletion is the fish variant of BashCompletion.
const FishCompletion = `# Fish completion for edushop

complete -c edushop -f
complete -c edushop -n "__fish_use_subcommand" -a serve -d "Run the HTTP API (default)"
complete -c edushop -n "__fish_use_subcommand" -a healthcheck -d "Probe a running instance"
complete -c edushop -n "__fish_use_subcommand" -a createsuperuser -d "Create a staff account"
complete -c edushop -n "__fish_use_subcommand" -a completion -d "Print a shell completion script"
complete -c edushop -n "__fish_seen_subcommand_from healthcheck" -l url -d "Base URL"
complete -c edushop -n "__fish_seen_subcommand_from healthcheck" -l timeout -d "Request timeout"
complete -c edushop -n "__fish_seen_subcommand_from createsuperuser" -l username -d "Login name"
complete -c edushop -n "__fish_seen_subcommand_from createsuperuser" -l email -d "Email"
complete -c edushop -n "__fish_seen_subcommand_from createsuperuser" -l password -d "Password"
complete -c edushop -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
`

func completionScript(shell string) (string, error) {
	switch shell {
	case "bash":
		return BashCompletion, nil
	case "zsh":
		return ZshCompletion, nil
	case "fish":
		return FishCompletion, nil
	}
	return "", fmt.Errorf("unsupported shell: %s (supported: bash, zsh, fish)", shell)
}

// GenerateCompletion writes the script for shell to w.
func GenerateCompletion(w io.Writer, shell string) error {
	script, err := completionScript(shell)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, script)
	return err
}

// InstallCompletion writes the script under home and returns its path.
func InstallCompletion(shell, home string) (string, error) {
	script, err := completionScript(shell)
	if err != nil {
		return "", err
	}
	if home == "" {
		if home, err = os.UserHomeDir(); err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
	}

	var path string
	switch shell {
	case "bash":
		path = filepath.Join(home, ".bash_completion.d", "edushop")
	case "zsh":
		path = filepath.Join(home, ".zsh", "completion", "_edushop")
	case "fish":
		path = filepath.Join(home, ".config", "fish", "completions", "edushop.fish")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create completion directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		return "", fmt.Errorf("failed to write completion script: %w", err)
	}
	return path, nil
}
