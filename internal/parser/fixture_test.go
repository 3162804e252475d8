package parser

// receiptPages is a two-page discount receipt as produced by the PDF text
// extraction. The second page is boilerplate only.
var receiptPages = []string{
	`BANCO EXEMPLO S.A.
BORDERÔ DE DESCONTO DE TÍTULOS
Data da Operação Canal
15/03/2024 14:32:10 Internet Banking
Agência / Conta Crédito CPF/CNPJ Cliente/Cedente
0123 / 000012345678-9 12.345.678/0001-90 ACME COMERCIO LTDA
Valor Total do(s) Título(s) R$ Qtde Título(s) Vencimento Final
1.500,00 2 30/06/2024
Valor Líquido - R$ Taxa Custo Efetivo Total (CET) Valor da Tarifa - R$ Valor IOF - R$
1.420,50 1,89% (a.m.) 2,10% (a.m.) 28,32% (a.a.) 15,00 7,35
RELAÇÃO DO(S) TÍTULO(S) PARA DESCONTO
Seq. Sacado CPF/CNPJ S. Número Emissão Tipo Aceite Valor Título Vencimento
1 JOAO DA SILVA 123.456.789-01 NF-1001 01/03/2024 DM Sim 500,00 30/05/2024
2 MARIA SOUZA 98.765.432/0001-10 NF-1002 02/03/2024 NP Não 1.000,00 30/06/2024`,
	`Entregamos nesta data os títulos relacionados, cujos encargos estão
demonstrados pelos valores de Custo Efetivo Total abaixo indicados.
Atendimento personalizado
Capitais e regiões metropolitanas 4004 0000
Demais localidades
CENTRAL DE SUPORTE 0800 000 0000
SAC 0800 000 0001
OUVIDORIA`,
}

// receiptFinancial is the vector expected from receiptPages.
var receiptFinancial = []string{
	"1.500,00", "2", "30", "06", "2024",
	"1.420,50", "1,89%", ".", ".",
	"2,10%", ".", ".",
	"28,32%", ".", ".",
	"15,00", "7,35",
}
