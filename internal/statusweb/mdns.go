package statusweb

import (
	"fmt"
	"strings"

	"github.com/hashicorp/mdns"
)

// serviceType is the mDNS service claodex advertises its status page under,
// following internal/cli/web.go's convention of advertising its own web
// server as "_adaf._tcp".
const serviceType = "_claodex._tcp"

// Advertise starts an mDNS responder for the status server so a LAN monitor
// can discover a running workspace without typing an address. name should
// identify the workspace (e.g. its directory basename).
func Advertise(name string, port int, url string) (*mdns.Server, error) {
	if port <= 0 {
		return nil, fmt.Errorf("statusweb: invalid port %d for mDNS advertisement", port)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "claodex"
	}
	service, err := mdns.NewMDNSService(name, serviceType, "local", "", port, nil, []string{
		fmt.Sprintf("workspace=%s", name),
		fmt.Sprintf("url=%s", url),
	})
	if err != nil {
		return nil, err
	}
	return mdns.NewServer(&mdns.Config{Zone: service})
}
