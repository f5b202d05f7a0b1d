// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ds

import "fmt"

// StaticIP builds the team-derived address net.TE.AM.host.
// Team 118 on network 10 with host 2 gives "10.1.18.2".
func StaticIP(network, team, host int) string {
	if team < 0 {
		team = 0
	}
	return fmt.Sprintf("%d.%d.%d.%d", network, (team/100)%256, team%100, host)
}
