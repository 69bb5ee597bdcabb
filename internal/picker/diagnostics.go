package picker

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/haavardk/pickersync/internal/mediaprovider"
	"github.com/haavardk/pickersync/internal/provider"
)

// Dump renders the §4.H diagnostics in the documented order: local
// authority, current cloud ProviderInfo, the full available-cloud-provider
// list, the raw persisted cloud authority string, and the cached
// collection-infos for local and cloud.
func (c *Controller) Dump(ctx context.Context, allowlist []string, registry *provider.Registry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "local authority: %s\n", c.local.Authority())

	current := c.cloudSt.Current()
	fmt.Fprintf(&b, "cloud provider: %s\n", describeCloudState(current))

	fmt.Fprintln(&b, "available cloud providers:")

	for _, info := range registry.Available(allowlist) {
		fmt.Fprintf(&b, "  - %s (%s)\n", info.Authority, info.PackageName)
	}

	raw, everSet, err := c.prefs.CloudProviderAuthority(ctx)
	if err != nil {
		fmt.Fprintf(&b, "persisted cloud authority: <error: %v>\n", err)
	} else if !everSet {
		fmt.Fprintln(&b, "persisted cloud authority: <never set>")
	} else {
		fmt.Fprintf(&b, "persisted cloud authority: %q\n", raw)
	}

	fmt.Fprintf(&b, "local collection info: %s\n", c.describeCollectionInfo(ctx, c.local))

	if cloudProv := c.cloud(); cloudProv != nil {
		fmt.Fprintf(&b, "cloud collection info: %s\n", c.describeCollectionInfo(ctx, cloudProv))
	} else {
		fmt.Fprintln(&b, "cloud collection info: <no active cloud provider>")
	}

	return b.String()
}

func describeCloudState(state CloudProviderState) string {
	if !state.IsSet() {
		return state.Kind.String()
	}

	return fmt.Sprintf("%s (%s)", state.Info.Authority, state.Info.PackageName)
}

func (c *Controller) describeCollectionInfo(ctx context.Context, prov Provider) string {
	cursor, ok, err := c.prefs.MediaSyncCursor(ctx, prov.Authority())
	if err != nil {
		return fmt.Sprintf("<error: %v>", err)
	}

	if !ok {
		return "<none cached>"
	}

	return formatCollectionInfo(mediaprovider.CollectionInfo{ID: cursor.CollectionID, LastSyncGeneration: cursor.Generation})
}

func formatCollectionInfo(info mediaprovider.CollectionInfo) string {
	return fmt.Sprintf("collection_id=%s generation=%s",
		info.ID, humanize.Comma(info.LastSyncGeneration))
}
