package util

// NormalizePhone rewrites the WhatsApp wa_id of a Mexican number into the
// dialable form. WhatsApp reports Mexican numbers with a "521" prefix while
// the send API expects "52" plus the ten digit number, so the third digit is
// dropped. Numbers too short to carry a prefix pass through unchanged.
func NormalizePhone(waID string) string {
	if len(waID) < 3 {
		return waID
	}
	return "52" + waID[3:]
}
