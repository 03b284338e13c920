package config

import "github.com/pion/webrtc/v4"

// ICEServer is one STUN/TURN entry handed to clients for their peer
// connections. The server itself never opens one.
type ICEServer struct {
	URLs       []string `mapstructure:"urls" json:"urls" validate:"min=1,dive,required"`
	Username   string   `mapstructure:"username" json:"username,omitempty"`
	Credential string   `mapstructure:"credential" json:"credential,omitempty"`
}

func (c *Config) WebRTCICEServers() []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(c.ICEServers))
	for _, s := range c.ICEServers {
		srv := webrtc.ICEServer{URLs: append([]string(nil), s.URLs...)}
		if s.Username != "" {
			srv.Username = s.Username
			srv.Credential = s.Credential
		}
		out = append(out, srv)
	}
	return out
}
