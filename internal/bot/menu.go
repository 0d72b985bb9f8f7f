package bot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/supplierbot/internal/catalog"
	"github.com/dmitrijs2005/supplierbot/internal/models"
	"github.com/dmitrijs2005/supplierbot/internal/sessions"
)

// Button tokens.
const (
	TokenMainMenu  = "m_main_menu"
	TokenAdminMenu = "m_admin_menu"
	TokenAdd       = "m_add"
	TokenRename    = "m_en_hint"
	TokenAnnotate  = "m_ei_hint"
	TokenImage     = "m_ep_hint"
	TokenDelete    = "m_del_hint"
	TokenCancel    = "m_cancel"
	TokenRefresh   = "m_ref"

	// TokenViewPrefix prefixes the entry name in search result buttons.
	TokenViewPrefix = "v_"
	// TokenHashPrefix prefixes a digest of the name when the name does
	// not fit a button token.
	TokenHashPrefix = "h_"
)

// MaxTokenBytes is the size limit Telegram puts on button callback data.
const MaxTokenBytes = 64

const helpText = `**📖 Supplier bot**

Use the menu buttons or type a command. Any other text searches the catalog.

📌 **General**
/start - open the main menu
/help - show this help
/cancel - stop the current workflow
/refresh - reload the catalog

🛠️ **Quick actions**
/add [name] - add a supplier
/supplier [keyword] - search suppliers

⚙️ **Admin**
/delete [name] - delete a supplier and its picture
/editname [name] - rename a supplier
/editinfo [name] - change the note
/editphoto [name] - change the picture`

const adminText = "🛠️ **Admin menu**"

var (
	mainMenu = []models.Choice{
		{Label: "➕ Add", Token: TokenAdd},
		{Label: "🛠️ Admin", Token: TokenAdminMenu},
		{Label: "🚫 Cancel", Token: TokenCancel},
		{Label: "🔄 Refresh", Token: TokenRefresh},
	}

	adminMenu = []models.Choice{
		{Label: "📝 Rename", Token: TokenRename},
		{Label: "🖼️ Change picture", Token: TokenImage},
		{Label: "✍️ Change note", Token: TokenAnnotate},
		{Label: "🗑️ Delete", Token: TokenDelete},
		{Label: "🚫 Cancel", Token: TokenCancel},
		{Label: "⬅️ Back", Token: TokenMainMenu},
	}

	cancelOnly = []models.Choice{{Label: "🚫 Cancel", Token: TokenCancel}}
)

func helpReply() models.Reply {
	return models.Reply{Text: helpText, Choices: mainMenu, ChoicesPerRow: 2}
}

func adminReply() models.Reply {
	return models.Reply{Text: adminText, Choices: adminMenu, ChoicesPerRow: 2}
}

// card renders one entry: its picture with name and note as the caption.
func card(e models.Entry) models.Reply {
	note := e.Note
	if strings.TrimSpace(note) == "" {
		note = "—"
	}
	return models.Reply{
		Text:     fmt.Sprintf("🎮 **%s**\n📝 %s", esc(e.Name), esc(note)),
		ImageURL: e.ImageRef,
	}
}

// matchesReply lists several search results, one button per entry.
func matchesReply(entries []models.Entry) models.Reply {
	r := models.Reply{
		Text:          fmt.Sprintf("🔍 Found %d suppliers, pick one:", len(entries)),
		ChoicesPerRow: 1,
	}
	for _, e := range entries {
		r.Choices = append(r.Choices, models.Choice{Label: e.Name, Token: viewToken(e.Name)})
	}
	return r
}

// viewToken names the entry in a search result button. Names added straight
// in the sheet are not length checked, so long ones are replaced by a digest
// that view resolves through the snapshot.
func viewToken(name string) string {
	if t := TokenViewPrefix + name; len(t) <= MaxTokenBytes {
		return t
	}
	return TokenHashPrefix + nameDigest(name)
}

func nameDigest(name string) string {
	sum := sha256.Sum256([]byte(catalog.Normalize(name)))
	return hex.EncodeToString(sum[:12])
}

// prompt asks for the input the mode waits for. note is the current note of
// the target, used by the annotate prompt.
func prompt(sess sessions.Session, note string) string {
	name := esc(sess.Name)
	switch sess.Mode {
	case sessions.CreateAwaitingImage:
		if sess.Name != "" {
			return fmt.Sprintf("📸 Send the picture for **%s**.", name)
		}
		return "📸 Send the supplier's picture to start adding it."
	case sessions.CreateAwaitingName:
		return "✍️ Enter the new supplier's name."
	case sessions.CreateAwaitingNote:
		return fmt.Sprintf("📝 Enter the note for **%s**.", name)
	case sessions.RenameAwaitingOld:
		return "📝 **Rename**\nEnter the current name."
	case sessions.RenameAwaitingNew:
		return fmt.Sprintf("🔍 Found **%s**. Enter the new name.", name)
	case sessions.AnnotateAwaitingTarget:
		return "✍️ **Change note**\nEnter the supplier name."
	case sessions.AnnotateAwaitingNote:
		if strings.TrimSpace(note) == "" {
			note = "—"
		}
		return fmt.Sprintf("🔎 Found **%s**\nCurrent note: %s\n\nEnter the new note.", name, esc(note))
	case sessions.IllustrateAwaitingTarget:
		return "🖼️ **Change picture**\nEnter the supplier name."
	case sessions.IllustrateAwaitingImage:
		return fmt.Sprintf("📸 Found **%s**. Send the new picture.", name)
	case sessions.DeleteAwaitingName:
		return "🗑️ **Delete**\nEnter the supplier name."
	}
	return ""
}

var escaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
	"#", `\#`,
	"~", `\~`,
)

// esc makes user text safe to embed in reply Markdown.
func esc(s string) string {
	return escaper.Replace(s)
}
