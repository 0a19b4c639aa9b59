package config

import (
	"os/exec"
	"strings"
)

// Tool is the availability of one external tool.
type Tool struct {
	Name      string
	Available bool
	Detail    string
	Hint      string
}

// CheckTools probes every external tool the pipeline can use.
func CheckTools() []Tool {
	xcode := CheckXcode()
	tools := []Tool{
		{Name: "Xcode", Available: xcode, Hint: "install Xcode from the App Store"},
		{Name: "xcodegen", Available: CheckXcodegen(), Hint: "brew install xcodegen"},
		{Name: "iOS Simulator", Available: CheckSimulator(), Hint: "install an iOS runtime in Xcode > Settings > Platforms"},
		{Name: "claude CLI", Available: CheckClaude(), Hint: "curl -fsSL https://claude.ai/install.sh | bash"},
	}
	if !xcode && CheckXcodeCLT() {
		tools[0].Detail = "command line tools only"
	}
	if path, err := findClaude(); err == nil {
		tools[3].Detail = ClaudeVersion(path)
	}
	return tools
}

// CanBuild reports whether xcodegen and xcodebuild are both present.
func CanBuild() bool {
	return CheckXcodegen() && CheckXcode()
}

// CheckXcode returns true if the full Xcode IDE is installed (not just CLT).
func CheckXcode() bool {
	out, err := exec.Command("xcode-select", "-p").Output()
	if err != nil {
		return false
	}
	// /Applications/Xcode.app/... for full Xcode,
	// /Library/Developer/CommandLineTools for CLT only.
	return strings.Contains(strings.TrimSpace(string(out)), "Xcode.app")
}

// CheckXcodeCLT returns true if Xcode Command Line Tools are installed.
func CheckXcodeCLT() bool {
	return exec.Command("xcode-select", "-p").Run() == nil
}

// CheckSimulator returns true if an iOS Simulator runtime is available.
func CheckSimulator() bool {
	out, err := exec.Command("xcrun", "simctl", "list", "runtimes", "--json").Output()
	if err != nil {
		return false
	}
	return strings.Contains(string(out), "iOS")
}

// CheckXcodegen returns true if xcodegen is installed.
func CheckXcodegen() bool {
	_, err := exec.LookPath("xcodegen")
	return err == nil
}

// CheckClaude returns true if the claude CLI is installed.
func CheckClaude() bool {
	_, err := findClaude()
	return err == nil
}

// ClaudeVersion returns the installed claude CLI version.
func ClaudeVersion(claudePath string) string {
	out, err := exec.Command(claudePath, "--version").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}
