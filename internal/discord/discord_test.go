package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/standvox/standvox/internal/standup"
)

// ─── router ──────────────────────────────────────────────────────────────────

func TestRouter_CollectsCommandDefinitions(t *testing.T) {
	t.Parallel()

	r := NewCommandRouter()
	def := &discordgo.ApplicationCommand{Name: "standup"}
	r.RegisterCommand("standup", def, func(*discordgo.Session, *discordgo.InteractionCreate) {})
	r.RegisterHandler("standup/status", func(*discordgo.Session, *discordgo.InteractionCreate) {})
	r.RegisterHandler("standup/stop", func(*discordgo.Session, *discordgo.InteractionCreate) {})

	cmds := r.ApplicationCommands()
	if len(cmds) != 1 {
		t.Fatalf("ApplicationCommands = %d entries, want 1", len(cmds))
	}
	if cmds[0].Name != "standup" {
		t.Errorf("command name = %q", cmds[0].Name)
	}
}

func TestRouter_DispatchesSubcommands(t *testing.T) {
	t.Parallel()

	var got []string
	record := func(key string) HandlerFunc {
		return func(*discordgo.Session, *discordgo.InteractionCreate) {
			got = append(got, key)
		}
	}

	r := NewCommandRouter()
	r.RegisterCommand("standup", &discordgo.ApplicationCommand{Name: "standup"}, record("standup"))
	r.RegisterHandler("standup/skip", record("standup/skip"))

	r.Handle(nil, commandInteraction("standup"))
	r.Handle(nil, commandInteraction("standup", "skip"))

	if len(got) != 2 || got[0] != "standup" || got[1] != "standup/skip" {
		t.Errorf("dispatched handlers = %v, want [standup standup/skip]", got)
	}
}

// commandInteraction builds a slash command interaction, optionally nested
// one subcommand deep.
func commandInteraction(name string, sub ...string) *discordgo.InteractionCreate {
	data := discordgo.ApplicationCommandInteractionData{Name: name}
	for _, s := range sub {
		data.Options = append(data.Options, &discordgo.ApplicationCommandInteractionDataOption{
			Name: s,
			Type: discordgo.ApplicationCommandOptionSubCommand,
		})
	}
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionApplicationCommand,
			Data: data,
		},
	}
}

// ─── permissions ─────────────────────────────────────────────────────────────

func TestPermissions_EmptyRoleAllowsEveryone(t *testing.T) {
	t.Parallel()

	perms := NewPermissionChecker("")
	i := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Member: &discordgo.Member{Roles: []string{}},
		},
	}
	if !perms.CanControl(i) {
		t.Error("empty role ID should allow everyone")
	}
}

func TestPermissions_RequiresFacilitatorRole(t *testing.T) {
	t.Parallel()

	perms := NewPermissionChecker("facilitator-123")

	without := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Member: &discordgo.Member{Roles: []string{"other-role"}},
		},
	}
	if perms.CanControl(without) {
		t.Error("user without the role should be denied")
	}

	with := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Member: &discordgo.Member{Roles: []string{"facilitator-123"}},
		},
	}
	if !perms.CanControl(with) {
		t.Error("user with the role should be allowed")
	}

	noMember := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}
	if perms.CanControl(noMember) {
		t.Error("interaction without a member should be denied")
	}
}

// ─── standup command ─────────────────────────────────────────────────────────

func TestStandupCommands_Definition(t *testing.T) {
	t.Parallel()

	sc := &StandupCommands{perms: NewPermissionChecker("")}
	def := sc.Definition()
	if def.Name != "standup" {
		t.Fatalf("command name = %q", def.Name)
	}

	want := map[string]bool{"status": false, "mic": false, "skip": false, "stop": false}
	for _, opt := range def.Options {
		if opt.Type != discordgo.ApplicationCommandOptionSubCommand {
			t.Errorf("option %q type = %v, want subcommand", opt.Name, opt.Type)
		}
		if _, ok := want[opt.Name]; !ok {
			t.Errorf("unexpected subcommand %q", opt.Name)
		}
		want[opt.Name] = true
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestStandupCommands_RegisterWiresAllKeys(t *testing.T) {
	t.Parallel()

	r := NewCommandRouter()
	sc := &StandupCommands{
		control: func() InterviewControl { return nil },
		perms:   NewPermissionChecker(""),
	}
	sc.Register(r)

	for _, key := range []string{"standup", "standup/status", "standup/mic", "standup/skip", "standup/stop"} {
		if r.handlers[key] == nil {
			t.Errorf("missing router entry %q", key)
		}
	}
}

// ─── status embed ────────────────────────────────────────────────────────────

func TestBuildStatusEmbed(t *testing.T) {
	t.Parallel()

	roster := []standup.Participant{
		{Name: "Jeeva"},
		{Name: "Ajay"},
	}
	roster[0].Responses[standup.Yesterday] = "importer"
	roster[0].Responses[standup.Today] = "exporter"
	roster[0].Responses[standup.Blockers] = "None"

	embed := buildStatusEmbed(roster, false)
	if len(embed.Fields) != 2 {
		t.Fatalf("fields = %d, want 2", len(embed.Fields))
	}
	if embed.Fields[0].Name != "Jeeva" {
		t.Errorf("field name = %q", embed.Fields[0].Name)
	}
	if embed.Color != embedColorGreen {
		t.Errorf("color = %#x, want green while running", embed.Color)
	}
	if embed.Footer.Text != "In progress — 1/2 participants done" {
		t.Errorf("footer = %q", embed.Footer.Text)
	}

	done := buildStatusEmbed(roster, true)
	if done.Color != embedColorRed {
		t.Errorf("completed color = %#x, want red", done.Color)
	}
	if done.Footer.Text != "Interview completed" {
		t.Errorf("completed footer = %q", done.Footer.Text)
	}
}
