// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

//go:build integration

package cli_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/vrcswitch/avatar-switch/internal/vrchat"
	"github.com/vrcswitch/avatar-switch/internal/vrchat/vrchattest"
)

var _ = Describe("avatar-switch", func() {
	var (
		ctx     context.Context
		server  *vrchattest.Server
		homeDir string
	)

	// invoke runs the binary with stdin and returns combined output and the
	// exit code.
	invoke := func(stdin string, extraEnv []string, args ...string) (string, int) {
		full := append([]string{"--base-url", server.BaseURL(), "--max-retries", "0"}, args...)
		cmd := exec.CommandContext(ctx, env.binary, full...)
		cmd.Env = append([]string{
			"HOME=" + homeDir,
			"XDG_CONFIG_HOME=" + filepath.Join(homeDir, "config"),
			"XDG_STATE_HOME=" + filepath.Join(homeDir, "state"),
		}, extraEnv...)
		cmd.Stdin = strings.NewReader(stdin)

		output, err := cmd.CombinedOutput()
		if exitErr, ok := err.(*exec.ExitError); ok {
			return string(output), exitErr.ExitCode()
		}
		Expect(err).NotTo(HaveOccurred())
		return string(output), 0
	}

	credentials := []string{"VRCHAT_USERNAME=alice", "VRCHAT_PASSWORD=hunter2"}

	BeforeEach(func() {
		ctx = context.Background()
		homeDir = GinkgoT().TempDir()
		server = vrchattest.NewServer("alice", "hunter2",
			vrchattest.WithFavorites(
				vrchat.Avatar{ID: "avtr_9", Name: "Fox"},
				vrchat.Avatar{ID: "avtr_1", Name: "Robot"},
				vrchat.Avatar{ID: "avtr_2", Name: "Robot2"},
			),
		)
		DeferCleanup(server.Close)
	})

	Describe("switching", func() {
		It("switches to the single favorite that matches", func() {
			output, code := invoke("", credentials, "FOX")
			Expect(code).To(Equal(0), output)
			Expect(output).To(ContainSubstring("Switched to Fox (avtr_9)."))
			Expect(server.CurrentAvatar()).To(Equal("avtr_9"))
		})

		It("reuses the saved session on the next run", func() {
			output, code := invoke("", credentials, "fox")
			Expect(code).To(Equal(0), output)

			output, code = invoke("", []string{"VRCHAT_USERNAME=alice"}, "robot2")
			Expect(code).To(Equal(0), output)
			Expect(output).To(ContainSubstring("(saved session)"))
			Expect(server.Calls(vrchattest.OpLogin)).To(Equal(1))
			Expect(server.CurrentAvatar()).To(Equal("avtr_2"))
		})

		It("exits 1 and names every match when the query is ambiguous", func() {
			output, code := invoke("", credentials, "robot")
			Expect(code).To(Equal(1))
			Expect(output).To(ContainSubstring(`"robot" matches several avatars: Robot, Robot2.`))
			Expect(server.Calls(vrchattest.OpSelectAvatar)).To(Equal(0))
		})

		It("exits 1 when nothing matches", func() {
			output, code := invoke("", credentials, "zebra")
			Expect(code).To(Equal(1))
			Expect(output).To(ContainSubstring(`No avatar matches "zebra".`))
		})

		It("reads credentials and the avatar name from stdin", func() {
			output, code := invoke("alice\nhunter2\nfox\n", nil)
			Expect(code).To(Equal(0), output)
			Expect(server.CurrentAvatar()).To(Equal("avtr_9"))
		})

		It("reads credentials from an env file", func() {
			envFile := filepath.Join(homeDir, "creds.env")
			Expect(os.WriteFile(envFile, []byte("VRCHAT_USERNAME=alice\nVRCHAT_PASSWORD=hunter2\n"), 0o600)).To(Succeed())

			output, code := invoke("", nil, "--env-file", envFile, "fox")
			Expect(code).To(Equal(0), output)
			Expect(server.CurrentAvatar()).To(Equal("avtr_9"))
		})
	})

	Describe("static mapping", func() {
		It("matches the mapping instead of favorites once it has entries", func() {
			output, code := invoke("", nil, "map", "add", "Robot", "avtr_7")
			Expect(code).To(Equal(0), output)

			output, code = invoke("", credentials, "bot")
			Expect(code).To(Equal(0), output)
			Expect(output).To(ContainSubstring("Switched to Robot (avtr_7)."))
			Expect(server.Calls(vrchattest.OpFavorites)).To(Equal(0))
		})
	})

	Describe("logout", func() {
		It("revokes the session and removes the cookie file", func() {
			output, code := invoke("", credentials, "fox")
			Expect(code).To(Equal(0), output)
			cookieFile := filepath.Join(homeDir, "state", "avatar-switch", "cookies.json")
			Expect(cookieFile).To(BeAnExistingFile())

			output, code = invoke("", nil, "logout")
			Expect(code).To(Equal(0), output)
			Expect(output).To(ContainSubstring("Logged out."))
			Expect(cookieFile).NotTo(BeAnExistingFile())
		})
	})
})
