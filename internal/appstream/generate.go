package appstream

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/oshokin/fwmeta/internal/domain/firmware"
)

const (
	// MaxReleases is how many releases of one component a catalog carries.
	MaxReleases = 5
	// DefaultOrigin is the catalog origin when Options.Origin is empty.
	DefaultOrigin = "lvfs"
	// CatalogVersion is the AppStream collection version attribute.
	CatalogVersion = "0.9"
	// DenyAllVendorID is a vendor-id restriction no device ever matches.
	DenyAllVendorID = "XXX:NEVER_GOING_TO_MATCH"

	uefiCapsuleProtocol = "org.uefi.capsule"
	wildcardVendorID    = "*"
	metainfoKeyword     = 5
)

// Options selects the document variant.
type Options struct {
	// FirmwareBaseURI prefixes firmware filenames in release locations.
	FirmwareBaseURI string
	// Local produces metadata for local use: upload checksums and no vendor-id rule.
	Local bool
	// Metainfo produces the machine-readable single-component document.
	Metainfo bool
	// AllowUnrestricted skips the vendor-id rule for unrestricted vendors.
	AllowUnrestricted bool
	// Origin is the collection origin attribute.
	Origin string
}

// GenerateComponents builds the gzip-compressed catalog for fws.
func GenerateComponents(fws []*firmware.Firmware, opts Options) ([]byte, error) {
	doc, err := Marshal(BuildCatalog(fws, opts))
	if err != nil {
		return nil, err
	}

	return Compress(doc)
}

// GenerateMetainfo builds the uncompressed metainfo document for components
// sharing one AppStream id.
func GenerateMetainfo(mds []*firmware.Component, opts Options) ([]byte, error) {
	opts.Metainfo = true

	sorted := slices.Clone(mds)
	firmware.SortNewestFirst(sorted)

	if len(sorted) > MaxReleases {
		sorted = sorted[:MaxReleases]
	}

	return Marshal(BuildComponent(sorted, opts))
}

// BuildCatalog groups the components of fws by AppStream id and merges each group.
func BuildCatalog(fws []*firmware.Firmware, opts Options) *Element {
	origin := opts.Origin
	if origin == "" {
		origin = DefaultOrigin
	}

	root := NewElement("components")
	root.Set("origin", origin)
	root.Set("version", CatalogVersion)

	groups := make(map[string][]*firmware.Component)

	for _, fw := range fws {
		for _, md := range fw.Components {
			if md.Firmware == nil {
				// Attach the back-reference to a copy so callers' components stay untouched.
				attached := *md
				attached.Firmware = fw
				md = &attached
			}

			groups[md.AppstreamID] = append(groups[md.AppstreamID], md)
		}
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	for _, id := range ids {
		mds := groups[id]
		firmware.SortNewestFirst(mds)

		if len(mds) > MaxReleases {
			mds = mds[:MaxReleases]
		}

		root.Append(BuildComponent(mds, opts))
	}

	return root
}

// BuildComponent merges mds, already sorted newest first, into one <component>.
func BuildComponent(mds []*firmware.Component, opts Options) *Element {
	component := NewElement("component")
	component.Set("type", "firmware")

	if len(mds) == 0 {
		return component
	}

	md := mds[0]

	component.AddText("id", md.AppstreamID)

	if md.Branch != "" {
		component.AddText("branch", md.Branch)
	}

	if opts.Metainfo {
		component.AddText("name", md.Name)

		if md.NameVariantSuffix != "" {
			component.AddText("name_variant_suffix", md.NameVariantSuffix)
		}
	} else {
		component.AddText("name", md.NameWithCategory())
	}

	component.AddText("summary", md.Summary)

	if md.Description != "" {
		component.Append(FromMarkdown(md.Description))
	}

	// The oldest descriptor defining a priority wins.
	for _, c := range mds {
		if c.Priority != 0 {
			component.Set("priority", strconv.Itoa(c.Priority))
		}
	}

	addProvides(component, mds)

	if md.URLHomepage != "" {
		component.AddText("url", md.URLHomepage).Set("type", "homepage")
	}

	if md.Icon != "" {
		component.AddText("icon", md.Icon).Set("type", "stock")
	}

	if md.MetadataLicense != "" {
		component.AddText("metadata_license", md.MetadataLicense)
	}

	if md.ProjectLicense != "" {
		component.AddText("project_license", md.ProjectLicense)
	}

	component.AddText("developer_name", md.DeveloperName)

	addScreenshots(component, mds, opts)
	addCategories(component, mds, opts)
	addCustom(component, mds, opts)
	addReleases(component, mds, opts)
	addRequires(component, mds, opts)

	if opts.Metainfo {
		addKeywords(component, mds)
	}

	return component
}

// Compress gzips data with a zero header timestamp.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	zw := gzip.NewWriter(&buf)

	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("compress document: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress document: %w", err)
	}

	return buf.Bytes(), nil
}

func addProvides(component *Element, mds []*firmware.Component) {
	var guids []string

	for _, md := range mds {
		for _, guid := range md.GUIDs {
			if !slices.Contains(guids, guid) {
				guids = append(guids, guid)
			}
		}
	}

	if len(guids) == 0 {
		return
	}

	slices.Sort(guids)

	provides := component.SubElement("provides")
	for _, guid := range guids {
		provides.AddText("firmware", guid).Set("type", "flashed")
	}
}

func addScreenshots(component *Element, mds []*firmware.Component, opts Options) {
	var (
		seen        []string
		screenshots []*Element
	)

	for _, md := range mds {
		key := cmp.Or(md.ScreenshotURL, md.ScreenshotCaption)
		if key == "" || slices.Contains(seen, key) {
			continue
		}

		screenshot := NewElement("screenshot")
		if len(screenshots) == 0 {
			screenshot.Set("type", "default")
		}

		if md.ScreenshotCaption != "" {
			screenshot.AddText("caption", md.ScreenshotCaption)
		}

		if md.ScreenshotURL != "" {
			if opts.Metainfo || md.ScreenshotURLSafe == "" {
				screenshot.AddText("image", md.ScreenshotURL)
			} else {
				screenshot.AddText("image", md.ScreenshotURLSafe)
			}
		}

		seen = append(seen, key)
		screenshots = append(screenshots, screenshot)
	}

	if len(screenshots) == 0 {
		return
	}

	parent := component.SubElement("screenshots")
	for _, screenshot := range screenshots {
		parent.Append(screenshot)
	}
}

func addCategories(component *Element, mds []*firmware.Component, opts Options) {
	var cats []string

	add := func(value string) {
		if value != "" && !slices.Contains(cats, value) {
			cats = append(cats, value)
		}
	}

	for _, md := range mds {
		if md.Category == nil {
			continue
		}

		add(md.Category.Value)

		if md.Category.Fallback != nil {
			add(md.Category.Fallback.Value)
		}
	}

	if len(cats) == 0 {
		return
	}

	name := "X-categories"
	if opts.Metainfo {
		name = "categories"
	}

	parent := component.SubElement(name)
	for _, cat := range cats {
		parent.AddText("category", cat)
	}
}

type customValue struct {
	key   string
	value string
}

func addCustom(component *Element, mds []*firmware.Component, opts Options) {
	var values []customValue

	if slices.ContainsFunc(mds, func(md *firmware.Component) bool { return md.InhibitDownload }) {
		values = append(values, customValue{key: "LVFS::InhibitDownload"})
	}

	if idx := slices.IndexFunc(mds, func(md *firmware.Component) bool { return md.ReleaseMessage != "" }); idx >= 0 {
		md := mds[idx]
		values = append(values, customValue{key: "LVFS::UpdateMessage", value: md.ReleaseMessage})

		if md.ReleaseImage != "" {
			image := md.ReleaseImageSafe
			if opts.Metainfo || image == "" {
				image = md.ReleaseImage
			}

			values = append(values, customValue{key: "LVFS::UpdateImage", value: image})
		}
	}

	if idx := slices.IndexFunc(mds, func(md *firmware.Component) bool { return md.VersionFormat != nil }); idx >= 0 {
		md := mds[idx]
		if len(md.VersionFormat.Fallbacks) > 0 && !md.SupportsVersionFormat() {
			for _, fallback := range md.VersionFormat.Fallbacks {
				values = append(values, customValue{key: "LVFS::VersionFormat", value: fallback})
			}
		}

		values = append(values, customValue{key: "LVFS::VersionFormat", value: md.VersionFormat.Value})
	}

	if idx := slices.IndexFunc(mds, func(md *firmware.Component) bool { return md.Protocol != "" }); idx >= 0 {
		values = append(values, customValue{key: "LVFS::UpdateProtocol", value: mds[idx].Protocol})
	}

	if len(values) == 0 {
		return
	}

	parent := component.SubElement("custom")
	for _, v := range values {
		parent.AddText("value", v.value).Set("key", v.key)
	}
}

func addReleases(component *Element, mds []*firmware.Component, opts Options) {
	releases := component.SubElement("releases")

	for _, md := range mds {
		if md.Version == "" {
			continue
		}

		releases.Append(buildRelease(md, opts))
	}
}

func buildRelease(md *firmware.Component, opts Options) *Element {
	fw := md.Firmware
	if fw == nil {
		fw = new(firmware.Firmware)
	}

	rel := NewElement("release")
	rel.Set("version", releaseVersion(md, opts))

	if md.ReleaseTimestamp != 0 {
		if opts.Metainfo {
			rel.Set("date", time.Unix(md.ReleaseTimestamp, 0).UTC().Format(time.DateOnly))
		} else {
			rel.Set("timestamp", strconv.FormatInt(md.ReleaseTimestamp, 10))
		}
	}

	if md.ReleaseUrgency != "" && md.ReleaseUrgency != "unknown" {
		rel.Set("urgency", md.ReleaseUrgency)
	}

	if md.ReleaseTag != "" {
		rel.Set("tag", md.ReleaseTag)
	}

	if !opts.Metainfo {
		rel.AddText("location", opts.FirmwareBaseURI+fw.Filename)
		addContainerChecksums(rel, fw, opts)
	}

	addChecksum(rel, md.ChecksumContentsSHA1, "sha1", md.FilenameContents, "content")
	addChecksum(rel, md.ChecksumContentsSHA256, "sha256", md.FilenameContents, "content")

	for _, csum := range md.DeviceChecksums {
		rel.AddText("checksum", csum.Value).
			Set("type", strings.ToLower(csum.Kind)).
			Set("target", "device")
	}

	if md.ReleaseDescription != "" {
		markdown := md.ReleaseDescription
		if len(md.Issues) > 0 && !opts.Metainfo {
			var sb strings.Builder

			sb.WriteString(markdown)
			sb.WriteString("\nSecurity issues fixed:\n")

			for _, issue := range md.Issues {
				sb.WriteString(" * " + issue.Value + "\n")
			}

			markdown = sb.String()
		}

		rel.Append(FromMarkdown(markdown))
	}

	if md.DetailsURL != "" {
		rel.AddText("url", md.DetailsURL).Set("type", "details")
	}

	if md.SourceURL != "" {
		rel.AddText("url", md.SourceURL).Set("type", "source")
	}

	if md.ReleaseInstalledSize != 0 {
		rel.AddText("size", strconv.FormatInt(md.ReleaseInstalledSize, 10)).Set("type", "installed")
	}

	if !opts.Metainfo && md.ReleaseDownloadSize != 0 {
		rel.AddText("size", strconv.FormatInt(md.ReleaseDownloadSize, 10)).Set("type", "download")
	}

	if opts.Metainfo && len(md.Issues) > 0 {
		issues := rel.SubElement("issues")
		for _, issue := range md.Issues {
			issues.AddText("issue", issue.Value).Set("type", issue.Kind)
		}
	}

	return rel
}

func releaseVersion(md *firmware.Component, opts Options) string {
	if !opts.Metainfo || !md.UsesHexVersion() {
		return md.Version
	}

	n, err := strconv.ParseUint(md.Version, 10, 32)
	if err != nil {
		return md.Version
	}

	return fmt.Sprintf("0x%08x", n)
}

// addContainerChecksums never mixes signed and upload checksums.
func addContainerChecksums(rel *Element, fw *firmware.Firmware, opts Options) {
	sha1, sha256 := fw.ChecksumSignedSHA1, fw.ChecksumSignedSHA256
	if opts.Local {
		sha1, sha256 = fw.ChecksumUploadSHA1, fw.ChecksumUploadSHA256
	}

	addChecksum(rel, sha1, "sha1", fw.Filename, "container")
	addChecksum(rel, sha256, "sha256", fw.Filename, "container")
}

func addChecksum(rel *Element, value, kind, filename, target string) {
	if value == "" {
		return
	}

	csum := rel.AddText("checksum", value).Set("type", kind)
	if filename != "" {
		csum.Set("filename", filename)
	}

	csum.Set("target", target)
}

func addRequires(component *Element, mds []*firmware.Component, opts Options) {
	var requires []*Element

	if !opts.Metainfo && !opts.Local {
		if vendorIDs := restrictedVendorIDs(mds, opts); len(vendorIDs) > 0 {
			child := NewElement("firmware")
			child.Text = "vendor-id"

			if len(vendorIDs) == 1 {
				child.Set("compare", "eq")
			} else {
				child.Set("compare", "regex")
			}

			child.Set("version", strings.Join(vendorIDs, "|"))
			requires = append(requires, child)
		}
	}

	for _, kind := range []string{firmware.RequirementID, firmware.RequirementFirmware} {
		for _, rq := range uniqueRequirements(mds, kind) {
			child := NewElement(rq.Kind)
			child.Text = rq.Value

			if rq.Compare != "" {
				child.Set("compare", rq.Compare)
			}

			if rq.Version != "" {
				child.Set("version", rq.Version)
			}

			if rq.Depth != "" {
				child.Set("depth", rq.Depth)
			}

			requires = append(requires, child)
		}
	}

	var hardware []string

	for _, md := range mds {
		for _, rq := range md.Requirements {
			if rq.Kind == firmware.RequirementHardware && !slices.Contains(hardware, rq.Value) {
				hardware = append(hardware, rq.Value)
			}
		}
	}

	if len(hardware) > 0 {
		child := NewElement(firmware.RequirementHardware)
		child.Text = strings.Join(hardware, "|")
		requires = append(requires, child)
	}

	if len(requires) == 0 {
		return
	}

	parent := component.SubElement("requires")
	for _, child := range requires {
		parent.Append(child)
	}
}

// restrictedVendorIDs returns the union of vendor-id restrictions. A vendor
// with no restrictions contributes DenyAllVendorID instead of allowing everything.
func restrictedVendorIDs(mds []*firmware.Component, opts Options) []string {
	var vendorIDs []string

	add := func(value string) {
		if !slices.Contains(vendorIDs, value) {
			vendorIDs = append(vendorIDs, value)
		}
	}

	for _, md := range mds {
		vendor := new(firmware.Vendor)
		if md.Firmware != nil && md.Firmware.VendorODM != nil {
			vendor = md.Firmware.VendorODM
		}

		if vendor.IsUnrestricted && opts.AllowUnrestricted {
			continue
		}

		// UEFI capsules predate vendor-id enforcement in clients.
		if md.Protocol == uefiCapsuleProtocol {
			continue
		}

		if len(vendor.Restrictions) == 0 {
			add(DenyAllVendorID)

			continue
		}

		for _, value := range vendor.Restrictions {
			if value != wildcardVendorID {
				add(value)
			}
		}
	}

	return vendorIDs
}

func uniqueRequirements(mds []*firmware.Component, kind string) []firmware.Requirement {
	var (
		seen   []string
		result []firmware.Requirement
	)

	for _, md := range mds {
		for _, rq := range md.Requirements {
			if rq.Kind != kind || slices.Contains(seen, rq.String()) {
				continue
			}

			seen = append(seen, rq.String())
			result = append(result, rq)
		}
	}

	return result
}

func addKeywords(component *Element, mds []*firmware.Component) {
	var keywords []string

	for _, md := range mds {
		for _, kw := range md.Keywords {
			if kw.Priority == metainfoKeyword && !slices.Contains(keywords, kw.Value) {
				keywords = append(keywords, kw.Value)
			}
		}
	}

	if len(keywords) == 0 {
		return
	}

	parent := component.SubElement("keywords")
	for _, kw := range keywords {
		parent.AddText("keyword", kw)
	}
}
