package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/catalog/runtime/metadata"
)

var modTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestExtractor(t *testing.T, cfg Config) *Extractor {
	t.Helper()
	x, err := New(cfg)
	require.NoError(t, err)
	return x
}

func extractSource(t *testing.T, x *Extractor, path, source string) []metadata.ComponentMetadata {
	t.Helper()
	components, err := x.Extract(context.Background(), path, []byte(source), modTime)
	require.NoError(t, err)
	return components
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestExtract_FunctionComponent(t *testing.T) {
	x := newTestExtractor(t, DefaultConfig())
	source := `
interface ButtonProps { variant?: string; size?: string }

export function Button({variant='primary'}: ButtonProps) {
  return <button className={variant} />;
}
`
	components := extractSource(t, x, "/app/src/Button.tsx", source)
	require.Len(t, components, 1)

	c := components[0]
	assert.Equal(t, "/app/src/Button.tsx", c.Path)
	assert.Equal(t, "Button", c.Name)
	assert.Equal(t, metadata.CategoryAtom, c.Category)
	assert.Equal(t, []string{"Button"}, c.Exports)
	assert.Equal(t, modTime, c.LastUpdated)
	assert.Equal(t, []metadata.PropDefinition{
		{Name: "variant", Type: "string", Required: false, DefaultValue: "'primary'"},
		{Name: "size", Type: "string", Required: false},
	}, c.Props)
}

func TestExtract_DescriptionAndExamples(t *testing.T) {
	x := newTestExtractor(t, DefaultConfig())
	source := "/**\n" +
		" * Compact status badge.\n" +
		" *\n" +
		" * @example\n" +
		" * ```tsx\n" +
		" * <Badge tone=\"info\" />\n" +
		" * ```\n" +
		" */\n" +
		"export const Badge = ({ tone }: { tone: 'info' | 'error' }) => <span />;\n"

	components := extractSource(t, x, "/app/components/molecules/Badge.tsx", source)
	require.Len(t, components, 1)

	c := components[0]
	assert.Equal(t, "Compact status badge.", c.Description)
	assert.Equal(t, []string{`<Badge tone="info" />`}, c.Examples)
	assert.Equal(t, metadata.CategoryMolecule, c.Category)
	require.Len(t, c.Props, 1)
	assert.Equal(t, "'info' | 'error'", c.Props[0].Type)
	assert.True(t, c.Props[0].Required)
}

func TestExtract_DefaultPrecedence(t *testing.T) {
	x := newTestExtractor(t, DefaultConfig())
	source := `
export interface AvatarProps {
  /**
   * Pixel size.
   * @default 32
   */
  size?: number;
  /** @default 'circle' */
  shape?: string;
  alt: string;
  rounded: boolean;
}

export function Avatar({ size = 48, alt }: AvatarProps) {
  return <img alt={alt} />;
}

Avatar.defaultProps = { shape: 'square', rounded: true };
`
	components := extractSource(t, x, "/app/Avatar.tsx", source)
	require.Len(t, components, 1)
	props := components[0].Props
	require.Len(t, props, 4)

	assert.Equal(t, "48", props[0].DefaultValue, "destructuring default wins over @default")
	assert.Equal(t, "Pixel size.", props[0].Description)
	assert.Equal(t, "'circle'", props[1].DefaultValue, "@default wins over defaultProps")
	assert.Equal(t, "", props[2].DefaultValue)
	assert.True(t, props[2].Required)
	assert.Equal(t, "true", props[3].DefaultValue)
	assert.False(t, props[3].Required, "defaulted prop is never required")
}

func TestExtract_PropsSources(t *testing.T) {
	x := newTestExtractor(t, DefaultConfig())

	tests := []struct {
		name   string
		source string
		props  []string
	}{
		{
			name:   "named props declaration",
			source: "type CardProps = { title: string };\nexport function Card(props) { return null; }\n",
			props:  []string{"title"},
		},
		{
			name:   "FC annotation",
			source: "interface P { label: string }\nexport const Card: React.FC<P> = (props) => null;\n",
			props:  []string{"label"},
		},
		{
			name:   "forwardRef type arguments",
			source: "type P = { value: string };\nexport const Card = forwardRef<HTMLDivElement, P>((props, ref) => null);\n",
			props:  []string{"value"},
		},
		{
			name:   "class superclass",
			source: "interface P { open: boolean }\nexport class Card extends React.Component<P> {}\n",
			props:  []string{"open"},
		},
		{
			name:   "intersection and extends",
			source: "interface Base { id: string }\ninterface P extends Base { title: string }\nexport function Card(props: P & { footer?: string }) { return null; }\n",
			props:  []string{"id", "title", "footer"},
		},
		{
			name:   "untyped destructuring",
			source: "export default function Card({ title, subtitle = '' }) { return null; }\n",
			props:  []string{"title", "subtitle"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			components := extractSource(t, x, "/app/Card.tsx", tt.source)
			require.Len(t, components, 1)
			var names []string
			for _, p := range components[0].Props {
				names = append(names, p.Name)
			}
			assert.Equal(t, tt.props, names)
		})
	}
}

func TestExtract_MultipleComponents(t *testing.T) {
	x := newTestExtractor(t, DefaultConfig())
	source := `
export function ListItem() { return null; }
export function useList() { return []; }
export const formatLabel = (s: string) => s;
const List = () => null;
export default List;
`
	components := extractSource(t, x, "/app/List.tsx", source)
	require.Len(t, components, 2)

	assert.Equal(t, "/app/List.tsx", components[0].Path, "default export is the primary component")
	assert.Equal(t, "List", components[0].Name)
	assert.Equal(t, []string{"default"}, components[0].Exports)

	assert.Equal(t, "/app/List.tsx#ListItem", components[1].Path)
	assert.Equal(t, "/app/List.tsx", components[1].SourceFile)
}

func TestExtract_AnonymousDefaultAndDuplicates(t *testing.T) {
	x := newTestExtractor(t, DefaultConfig())

	components := extractSource(t, x, "/app/Panel/index.tsx", "export default () => <div />;\n")
	require.Len(t, components, 1)
	assert.Equal(t, "Panel", components[0].Name)

	source := `
export function Toast() { return null; }
export default function () { return null; }
`
	components = extractSource(t, x, "/app/Toast.tsx", source)
	require.Len(t, components, 1, "later declaration with the same name is dropped")
	assert.Equal(t, []string{"Toast"}, components[0].Exports)
}

func TestExtract_NoComponents(t *testing.T) {
	x := newTestExtractor(t, DefaultConfig())
	components := extractSource(t, x, "/app/utils.ts", "export const sum = (a: number, b: number) => a + b;\n")
	assert.NotNil(t, components)
	assert.Empty(t, components)
}

func TestExtract_ParseError(t *testing.T) {
	x := newTestExtractor(t, DefaultConfig())
	_, err := x.Extract(context.Background(), "/app/Broken.tsx", []byte("export function Broken( {"), modTime)
	require.Error(t, err)

	extractErr, ok := AsExtractError(err)
	require.True(t, ok)
	assert.Equal(t, "/app/Broken.tsx", extractErr.File)
	assert.Equal(t, PhaseParse, extractErr.Phase)
	assert.Positive(t, extractErr.Line)
}

func TestExtract_Dependencies(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "components", "atoms", "Icon.tsx"), "export const Icon = () => null;\n")
	writeFile(t, filepath.Join(dir, "components", "atoms", "Label", "index.tsx"), "export const Label = () => null;\n")
	writeFile(t, filepath.Join(dir, "components", "molecules", "Field.tsx"), "")

	cfg := DefaultConfig()
	cfg.BaseDir = dir
	x := newTestExtractor(t, cfg)

	source := `
import React from 'react';
import clsx from 'clsx';
import { Icon } from '../atoms/Icon';
import { Label } from '@/components/atoms/Label';
import { Missing } from './Missing';
import styles from './Field.module.css';

export function Field() { return null; }
`
	components := extractSource(t, x, filepath.Join(dir, "components", "molecules", "Field.tsx"), source)
	require.Len(t, components, 1)
	c := components[0]

	assert.Equal(t, []string{"../atoms/Icon", "@/components/atoms/Label", "./Missing"}, c.Dependencies)
	assert.Equal(t, []string{"react", "clsx", "./Field.module.css"}, c.ExternalDependencies)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "components", "atoms", "Icon.tsx"),
		filepath.Join(dir, "components", "atoms", "Label", "index.tsx"),
	}, c.ResolvedDependencies)
}

func TestExtract_CustomCategories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Categories["templates"] = "template"
	x := newTestExtractor(t, cfg)

	components := extractSource(t, x, "/app/templates/Page.tsx", "export function Page() { return null; }\n")
	require.Len(t, components, 1)
	assert.Equal(t, metadata.Category("template"), components[0].Category)
}

func TestExtract_ParseCache(t *testing.T) {
	x := newTestExtractor(t, DefaultConfig())
	source := "export function Chip() { return null; }\n"

	first := extractSource(t, x, "/app/Chip.tsx", source)
	second := extractSource(t, x, "/app/Chip.tsx", source)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, x.cache.Len())
}

func TestExtract_CanceledContext(t *testing.T) {
	x := newTestExtractor(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := x.Extract(ctx, "/app/A.tsx", []byte("export function A() {}"), modTime)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Tag.tsx")
	writeFile(t, path, "export const Tag = memo(({ label }: { label: string }) => <b>{label}</b>);\n")

	x := newTestExtractor(t, DefaultConfig())
	components, err := x.ExtractFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, components, 1)
	assert.Equal(t, "Tag", components[0].Name)
	assert.Equal(t, "label", components[0].Props[0].Name)

	_, err = x.ExtractFile(context.Background(), filepath.Join(dir, "Nope.tsx"))
	extractErr, ok := AsExtractError(err)
	require.True(t, ok)
	assert.Equal(t, PhaseRead, extractErr.Phase)
}
