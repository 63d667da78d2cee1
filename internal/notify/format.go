package notify

import (
	"fmt"
	"strings"

	"github.com/danieljhkim/watchguard/internal/bus"
	"github.com/danieljhkim/watchguard/internal/stores"
)

const (
	notSpecified = "Not specified"
	defaultEmoji = "🔹"
	pointerEmoji = "👉"
)

// Format renders the chat message for event. Events with no message
// (config updates, collection-wide saves, reconciler label updates) yield "".
func Format(event bus.Event, origin string) string {
	switch event.Kind {
	case bus.KindServer, bus.KindDomain:
		if event.Name == bus.GlobalName {
			return ""
		}
		return formatEntity(event, origin)
	case bus.KindSettings:
		if event.Operation != bus.OpUpdate {
			return ""
		}
		return formatSettings(event, origin)
	case bus.KindLabel:
		return formatLabel(event, origin)
	}
	return ""
}

func formatEntity(event bus.Event, origin string) string {
	rec := stores.Record(event.Payload)

	var title, extra string
	switch event.Kind {
	case bus.KindServer:
		title = "Server"
		extra = fmt.Sprintf("• Datacenter: `%s`\n• Label: `%s`\n", field(rec, "datacenter"), labelOrNone(rec))
	case bus.KindDomain:
		title = "Domain"
		extra = fmt.Sprintf("• Registrar: `%s`\n", field(rec, "registrar"))
	}

	var heading, verb string
	switch event.Operation {
	case bus.OpAdd:
		heading, verb = "✅ New "+title+" Added", "Added"
	case bus.OpUpdate:
		heading, verb = "✅ "+title+" Updated", "Updated"
	case bus.OpDelete:
		return fmt.Sprintf("🗑️ `%s` has been removed from the system.\n\n- Deleted via %s", event.Name, origin)
	default:
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", heading)
	fmt.Fprintf(&b, "%s %s\n", emoji(rec), event.Name)
	fmt.Fprintf(&b, "• Expiration Date: `%s`\n", field(rec, "date"))
	fmt.Fprintf(&b, "• Price: `%s`\n", field(rec, "price"))
	b.WriteString(extra)
	fmt.Fprintf(&b, "\n- %s via %s", verb, origin)
	return b.String()
}

func formatSettings(event bus.Event, origin string) string {
	doc := stores.Document(event.Payload)

	daily := "Enabled"
	if v, ok := doc["daily_notifications"].(bool); ok && !v {
		daily = "Disabled"
	}

	var b strings.Builder
	b.WriteString("⚙️ Settings Updated\n\n")
	fmt.Fprintf(&b, "• Warning Days: `%s`\n", field(stores.Record(doc), "warning_days"))
	fmt.Fprintf(&b, "• Notification Time: `%02d:%02d`\n", intField(doc, "notification_hour", 9), intField(doc, "notification_minute", 0))
	fmt.Fprintf(&b, "• Daily Notifications: `%s`\n", daily)
	fmt.Fprintf(&b, "\n- Updated via %s", origin)
	return b.String()
}

func formatLabel(event bus.Event, origin string) string {
	switch event.Operation {
	case bus.OpAdd:
		return fmt.Sprintf("🏷️ New Label Added\n\n• Name: `%s`\n\n- Added via %s", event.Name, origin)
	case bus.OpDelete:
		return fmt.Sprintf("🗑️ Label Removed\n\n• Name: `%s`\n\n- Deleted via %s", event.Name, origin)
	}
	return ""
}

func field(rec stores.Record, key string) string {
	if v := rec.Field(key); v != "" {
		return v
	}
	return notSpecified
}

func labelOrNone(rec stores.Record) string {
	if l := rec.Label(); l != "" {
		return l
	}
	return "None"
}

func emoji(rec stores.Record) string {
	if e := rec.Field("emoji"); e != "" && e != defaultEmoji {
		return e
	}
	return pointerEmoji
}

func intField(doc stores.Document, key string, def int) int {
	switch v := doc[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}
