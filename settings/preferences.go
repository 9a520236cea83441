package settings

// Preferences are the user settings kept across reboots.
type Preferences struct {
	APBoot        bool   `cbor:"ap_boot"`
	APSSID        string `cbor:"ap_ssid"`
	APKey         string `cbor:"ap_key"`
	APColorCode   string `cbor:"ap_color_code"`
	APChannel     uint8  `cbor:"ap_channel"`
	STABoot       bool   `cbor:"sta_boot"`
	STAReconnect  bool   `cbor:"sta_reconnect"`
	STAReconnects int    `cbor:"sta_reconnects"` // -1 retries forever
	STAChannel    uint8  `cbor:"sta_channel"`
	STASSID       string `cbor:"sta_ssid"`
	STAKey        string `cbor:"sta_key"`
	ChannelUpdate bool   `cbor:"channel_update"`
	ChannelReset  bool   `cbor:"channel_reset"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		APBoot:        false,
		APKey:         "inovator",
		APChannel:     13,
		STABoot:       true,
		STAReconnect:  false,
		STAReconnects: -1,
		STAChannel:    13,
		ChannelUpdate: false,
		ChannelReset:  true,
	}
}
