package backgrounds

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gopkg.in/yaml.v3"
)

// Catalog maps each category to its candidate clip references, in a stable order.
type Catalog map[Category][]string

// Size returns the number of references known for c.
func (c Catalog) Size(cat Category) int {
	return len(c[cat])
}

// LoadCatalogDir globs <root>/<category>/*.mp4 for every known category.
// References are paths relative to root using forward slashes. A missing
// category directory yields an empty list for that category.
func LoadCatalogDir(root string) (Catalog, error) {
	catalog := make(Catalog, len(displayNames))
	for _, cat := range Categories() {
		files, err := filepath.Glob(filepath.Join(root, string(cat), "*.mp4"))
		if err != nil {
			return nil, fmt.Errorf("failed to glob backgrounds for %s: %w", cat, err)
		}
		refs := make([]string, 0, len(files))
		for _, f := range files {
			rel, err := filepath.Rel(root, f)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve %s: %w", f, err)
			}
			refs = append(refs, filepath.ToSlash(rel))
		}
		sort.Strings(refs)
		catalog[cat] = refs
	}
	return catalog, nil
}

// LoadCatalogManifest reads a YAML manifest of the form
//
//	satisfying:
//	  - satisfying/soap-cutting.mp4
//	minecraft:
//	  - minecraft/parkour-1.mp4
//
// Unknown categories are rejected; duplicate references are dropped.
func LoadCatalogManifest(file string) (Catalog, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog manifest: %w", err)
	}

	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse catalog manifest: %w", err)
	}

	catalog := make(Catalog, len(raw))
	for name, refs := range raw {
		cat, err := ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("catalog manifest: %w", err)
		}
		seen := make(map[string]bool, len(refs))
		for _, ref := range refs {
			ref = strings.TrimSpace(ref)
			if ref == "" || seen[ref] {
				continue
			}
			seen[ref] = true
			catalog[cat] = append(catalog[cat], ref)
		}
	}
	return catalog, nil
}

// ObjectLister lists objects under a prefix. *common.S3 satisfies it.
type ObjectLister interface {
	List(ctx context.Context, bucket, prefix string, maxKeys int32, continuationToken *string) (*s3.ListObjectsV2Output, error)
}

// LoadCatalogS3 lists s3://bucket/<prefix><category>/*.mp4 for every known
// category. References are full object keys.
func LoadCatalogS3(ctx context.Context, lister ObjectLister, bucket, prefix string) (Catalog, error) {
	catalog := make(Catalog, len(displayNames))
	for _, cat := range Categories() {
		var (
			refs  []string
			token *string
		)
		for {
			out, err := lister.List(ctx, bucket, prefix+string(cat)+"/", 1000, token)
			if err != nil {
				return nil, fmt.Errorf("failed to list backgrounds for %s: %w", cat, err)
			}
			for _, obj := range out.Contents {
				key := aws.ToString(obj.Key)
				if strings.EqualFold(path.Ext(key), ".mp4") {
					refs = append(refs, key)
				}
			}
			if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
				break
			}
			token = out.NextContinuationToken
		}
		sort.Strings(refs)
		catalog[cat] = refs
	}
	return catalog, nil
}
