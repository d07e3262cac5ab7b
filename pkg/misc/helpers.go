package misc

const (
	StateOFF = "off"
	StateON  = "on"
)

// OnOff spells a switch state the way uhubctl and friends expect it
func OnOff(on bool) string {
	if on {
		return StateON
	}
	return StateOFF
}
