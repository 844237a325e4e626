package mqttbridge

import "testing"

func TestTopicScheme(t *testing.T) {
	topics := Topics{Prefix: "terneo", Serial: "A1B2C3"}

	if got := topics.State(FieldTemperature); got != "terneo/A1B2C3/temperature" {
		t.Fatalf("unexpected state topic: %s", got)
	}
	if got := topics.Online(); got != "terneo/A1B2C3/online" {
		t.Fatalf("unexpected online topic: %s", got)
	}
	if got := topics.Command(CommandSetpoint); got != "terneo/A1B2C3/set/setpoint" {
		t.Fatalf("unexpected command topic: %s", got)
	}
	if got := topics.AllCommands(); got != "terneo/A1B2C3/set/+" {
		t.Fatalf("unexpected command pattern: %s", got)
	}
}
