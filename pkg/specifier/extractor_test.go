package specifier_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/unimported/pkg/specifier"
)

func texts(specs []specifier.Specifier) []string {
	out := make([]string, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.Text)
	}

	return out
}

func TestExtract_AllForms(t *testing.T) {
	t.Parallel()

	src := `import foo from './foo';
export { bar } from "./bar";
const baz = require('./baz');
const lazy = import(` + "`./lazy`" + `);
`

	specs, err := specifier.NewExtractor().Extract(context.Background(), "a.js", []byte(src))
	require.NoError(t, err)
	require.Len(t, specs, 4)

	assert.Equal(t, []string{"./foo", "./bar", "./baz", "./lazy"}, texts(specs))
	assert.Equal(t, specifier.StaticImport, specs[0].Kind)
	assert.Equal(t, specifier.ExportFrom, specs[1].Kind)
	assert.Equal(t, specifier.Require, specs[2].Kind)
	assert.Equal(t, specifier.DynamicImport, specs[3].Kind)
	assert.Equal(t, specifier.Position{Line: 1, Column: 17}, specs[0].Pos)
	assert.Equal(t, 3, specs[2].Pos.Line)
}

func TestExtract_SkipsComputedSpecifiers(t *testing.T) {
	t.Parallel()

	src := "const name = 'x';\n" +
		"import(`./pages/${name}`);\n" +
		"require(name);\n" +
		"require('./' + name);\n" +
		"import('./static');\n"

	specs, err := specifier.NewExtractor().Extract(context.Background(), "routes.js", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, []string{"./static"}, texts(specs))
}

func TestExtract_IgnoresOtherCalls(t *testing.T) {
	t.Parallel()

	src := `foo.require('./nope'); load('./also-nope'); const s = "import x from './str'";`

	specs, err := specifier.NewExtractor().Extract(context.Background(), "x.js", []byte(src))
	require.NoError(t, err)
	assert.Empty(t, specs)
}

func TestExtract_TypeScriptTypeOnly(t *testing.T) {
	t.Parallel()

	src := `import type { Props } from './types';
import { value } from './value';
export type { Shape } from './shape';
import legacy = require('./legacy');
`

	specs, err := specifier.NewExtractor().Extract(context.Background(), "mod.ts", []byte(src))
	require.NoError(t, err)
	require.Len(t, specs, 4)

	assert.Equal(t, specifier.TypeOnlyImport, specs[0].Kind)
	assert.True(t, specs[0].TypeOnly())
	assert.Equal(t, specifier.StaticImport, specs[1].Kind)
	assert.Equal(t, specifier.TypeOnlyImport, specs[2].Kind)
	assert.Equal(t, "./legacy", specs[3].Text)
	assert.Equal(t, specifier.Require, specs[3].Kind)
}

func TestExtract_TSX(t *testing.T) {
	t.Parallel()

	src := `import React from 'react';
import { Button } from '@/components/Button';
export const App = () => <Button label="hi" />;
`

	specs, err := specifier.NewExtractor().Extract(context.Background(), "App.tsx", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, []string{"react", "@/components/Button"}, texts(specs))
}

func TestExtract_Vue(t *testing.T) {
	t.Parallel()

	src := `<template>
  <Child />
</template>

<script lang="ts">
import Child from './Child.vue'
import { helper } from '../helper'
</script>
`

	specs, err := specifier.NewExtractor().Extract(context.Background(), "Parent.vue", []byte(src))
	require.NoError(t, err)
	require.Equal(t, []string{"./Child.vue", "../helper"}, texts(specs))
	assert.Equal(t, 6, specs[0].Pos.Line)
	assert.Equal(t, 7, specs[1].Pos.Line)
}

func TestExtract_Svelte(t *testing.T) {
	t.Parallel()

	src := `<script>
  import Nav from './Nav.svelte';
</script>

<Nav />
`

	specs, err := specifier.NewExtractor().Extract(context.Background(), "App.svelte", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, []string{"./Nav.svelte"}, texts(specs))
}

func TestExtract_ParseError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
	}{
		{name: "unexpected tokens", src: "import { from './x'\nconst = ;"},
		{name: "missing closing paren", src: "const x = (1 + 2;\n"},
		{name: "missing paren after import", src: "import x from './x'\nif (a {}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			specs, err := specifier.NewExtractor().Extract(context.Background(), "broken.js", []byte(tt.src))
			require.Error(t, err)
			assert.Nil(t, specs)

			var parseErr *specifier.ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, "broken.js", parseErr.Path)
			assert.Positive(t, parseErr.Line)
		})
	}
}

func TestExtract_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := specifier.NewExtractor().Extract(context.Background(), "style.css", []byte("body{}"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, specifier.ErrUnsupported))
}

func TestExtract_EmptyFile(t *testing.T) {
	t.Parallel()

	specs, err := specifier.NewExtractor().Extract(context.Background(), "empty.mjs", nil)
	require.NoError(t, err)
	assert.Empty(t, specs)
}

func TestDialectFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want specifier.Dialect
		ok   bool
	}{
		{"a.js", specifier.DialectJavaScript, true},
		{"a.CJS", specifier.DialectJavaScript, true},
		{"a.mts", specifier.DialectTypeScript, true},
		{"a.tsx", specifier.DialectTSX, true},
		{"a.vue", specifier.DialectVue, true},
		{"a.svelte", specifier.DialectSvelte, true},
		{"a.css", "", false},
	}

	for _, tt := range tests {
		got, ok := specifier.DialectFor(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "type-import", specifier.TypeOnlyImport.String())
	assert.Equal(t, "kind(9)", specifier.Kind(9).String())
}
