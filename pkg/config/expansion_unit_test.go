//go:build unit

package config

import (
	"reflect"

	"github.com/animalet/sargantana-config/pkg/config/secrets"
	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type mockSecretLoader struct{}

func (m *mockSecretLoader) Resolve(key string) (string, error) {
	if key == "test-secret" {
		return "resolved-secret", nil
	}
	return "", errors.Errorf("unknown secret %q", key)
}

func (m *mockSecretLoader) Name() string {
	return "mock"
}

var _ = Describe("Expansion", func() {
	BeforeEach(func() {
		secrets.Register("mock", &mockSecretLoader{})
	})

	AfterEach(func() {
		secrets.Unregister("mock")
	})

	It("should expand strings in nested structs", func() {
		type Nested struct {
			Value string
		}
		type TestStruct struct {
			Value  string
			Nested Nested
		}
		s := TestStruct{Value: "${mock:test-secret}", Nested: Nested{Value: "pre-${mock:test-secret}"}}
		Expect(expandVariables(reflect.ValueOf(&s).Elem())).To(Succeed())
		Expect(s.Value).To(Equal("resolved-secret"))
		Expect(s.Nested.Value).To(Equal("pre-resolved-secret"))
	})

	It("should expand pointers, slices and maps", func() {
		type TestStruct struct {
			Pointer *string
			Values  []string
			Map     map[string]string
		}
		val := "${mock:test-secret}"
		s := TestStruct{
			Pointer: &val,
			Values:  []string{"${mock:test-secret}", "normal"},
			Map:     map[string]string{"key": "${mock:test-secret}"},
		}
		Expect(expandVariables(reflect.ValueOf(&s).Elem())).To(Succeed())
		Expect(*s.Pointer).To(Equal("resolved-secret"))
		Expect(s.Values).To(Equal([]string{"resolved-secret", "normal"}))
		Expect(s.Map).To(HaveKeyWithValue("key", "resolved-secret"))
	})

	It("should tolerate nil pointers and maps", func() {
		type TestStruct struct {
			Pointer *string
			Map     map[string]string
		}
		s := TestStruct{}
		Expect(expandVariables(reflect.ValueOf(&s).Elem())).To(Succeed())
	})

	It("should return resolution failures as errors", func() {
		type TestStruct struct {
			Value string
		}
		s := TestStruct{Value: "${mock:other}"}
		err := expandVariables(reflect.ValueOf(&s).Elem())
		Expect(err).To(MatchError(ContainSubstring(`unknown secret "other"`)))
	})
})
